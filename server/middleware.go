package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentifier stores the authenticated account identifier
const ContextKeyIdentifier ContextKey = "identifier"

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// OfflineMiddleware drops the connection without a response while the server is offline.
func (s *Server) OfflineMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		offline := s.faults.offline
		s.mu.Unlock()
		if !offline {
			next(w, r)
			return
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "offline", http.StatusServiceUnavailable)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.env == "DEV" {
			logRoute(r.Method, r.URL.Path)
		}
		next(w, r)
	}
}

func (s *Server) RecordingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			TenantID:      r.Header.Get("X-Tenant-ID"),
			BusinessID:    r.Header.Get("X-Business-ID"),
		})
		s.mu.Unlock()
		next(w, r)
	}
}

// RequireAuth validates the Bearer access token and stores the account identifier in the context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			identifier, err := s.validateAccessToken(raw)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected access token")
				writeError(w, http.StatusUnauthorized, "access token expired or invalid")
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentifier, identifier)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireTenant checks the tenant header matches the token's account and a business is selected.
func (s *Server) RequireTenant() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identifier, _ := r.Context().Value(ContextKeyIdentifier).(string)
			s.mu.Lock()
			account, ok := s.accounts[identifier]
			s.mu.Unlock()
			if !ok {
				writeError(w, http.StatusUnauthorized, "unknown account")
				return
			}
			if r.Header.Get("X-Tenant-ID") != account.Tenant.ID {
				writeError(w, http.StatusForbidden, "tenant mismatch")
				return
			}
			if r.Header.Get("X-Business-ID") == "" {
				writeError(w, http.StatusBadRequest, "business not selected")
				return
			}
			next(w, r)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
