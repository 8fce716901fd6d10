package session

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the server rejects the identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired means the refresh token was rejected or missing. Terminal until the next Login.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated means there is no live session.
	ErrNotAuthenticated = errors.New("not authenticated")
)
