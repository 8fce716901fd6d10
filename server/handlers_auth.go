package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type userResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type loginResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         userResponse     `json:"user"`
	Tenant       tenants.Tenant   `json:"tenant"`
	Business     tenants.Business `json:"business"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed login request")
			return
		}

		s.mu.Lock()
		account, ok := s.accounts[req.Identifier]
		if !ok || account.Secret != req.Password {
			s.mu.Unlock()
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		access, refresh, err := s.issueTokensLocked(account)
		s.mu.Unlock()
		if err != nil {
			log.Err(err).Msg("failed to issue tokens")
			writeError(w, http.StatusInternalServerError, "token issue failed")
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			AccessToken:  access,
			RefreshToken: refresh,
			User:         userResponse{ID: account.UserID, Name: account.Name},
			Tenant:       account.Tenant,
			Business:     account.Business,
		})
	}
}

// RefreshHandler rotates the refresh token on every successful exchange.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed refresh request")
			return
		}

		s.mu.Lock()
		delay := s.faults.refreshDelay
		s.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		identifier, ok := s.refreshTokens[req.RefreshToken]
		if s.faults.refreshRevoked || !ok {
			writeError(w, http.StatusUnauthorized, "refresh token revoked")
			return
		}
		delete(s.refreshTokens, req.RefreshToken)
		access, refresh, err := s.issueTokensLocked(s.accounts[identifier])
		if err != nil {
			log.Err(err).Msg("failed to issue tokens")
			writeError(w, http.StatusInternalServerError, "token issue failed")
			return
		}
		writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access, RefreshToken: refresh})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.faults.logoutFails {
			writeError(w, http.StatusInternalServerError, "logout unavailable")
			return
		}
		if token, ok := bearerToken(r); ok {
			delete(s.accessTokens, token)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
