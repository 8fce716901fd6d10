package server

import "time"

type faults struct {
	offline        bool
	refreshRevoked bool
	logoutFails    bool
	refreshDelay   time.Duration
	saleStatus     map[string]int
}

// SetOffline makes every route drop its connection, as an unreachable network would.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.offline = offline
}

// RevokeRefreshTokens makes every current and future refresh fail with 401.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.refreshRevoked = true
	s.refreshTokens = make(map[string]string)
}

// ExpireAccessTokens invalidates all issued access tokens. Refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]string)
}

func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.logoutFails = fail
}

// SetRefreshDelay holds each refresh open for d so concurrent callers overlap.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.refreshDelay = d
}

// FailSale answers POST /sales for clientID with status until cleared.
func (s *Server) FailSale(clientID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults.saleStatus[clientID] = status
}

func (s *Server) ClearSaleFailure(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults.saleStatus, clientID)
}
