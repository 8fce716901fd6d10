package server

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// issueTokensLocked signs a new access token and mints an opaque refresh token. s.mu must be held.
func (s *Server) issueTokensLocked(account Account) (string, string, error) {
	now := s.nowFunc()
	claims := jwt.MapClaims{
		"sub":    account.UserID,
		"tenant": account.Tenant.ID,
		"iat":    now.Unix(),
		"exp":    now.Add(s.accessTokenExpiry).Unix(),
		"jti":    uuid.New().String(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", "", errors.Wrap(err, "[Server.issueTokens] sign access token")
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", errors.Wrap(err, "[Server.issueTokens] refresh token")
	}
	refresh := hex.EncodeToString(b)

	s.accessTokens[access] = account.Identifier
	s.refreshTokens[refresh] = account.Identifier
	return access, refresh, nil
}

func (s *Server) validateAccessToken(raw string) (string, error) {
	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.nowFunc))
	if err != nil {
		return "", errors.Wrap(err, "[Server.validateAccessToken]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	identifier, ok := s.accessTokens[raw]
	if !ok {
		return "", errors.New("[Server.validateAccessToken] token revoked")
	}
	return identifier, nil
}
