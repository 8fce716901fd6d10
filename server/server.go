// Package server is an in-process POS backend speaking the same /auth and /sales contract as
// production. It backs the client tests and `posclient dev-server` for local work, and can
// inject faults (offline, revoked refresh tokens, rejected sales).
package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/rs/zerolog/log"
)

// Account is a login the server accepts.
type Account struct {
	Identifier string
	Secret     string
	UserID     string
	Name       string
	Tenant     tenants.Tenant
	Business   tenants.Business
}

// RecordedRequest captures the session headers of one inbound call.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	TenantID      string
	BusinessID    string
}

type Server struct {
	env               string
	mux               *http.ServeMux
	routes            []string
	signingKey        []byte
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time

	mu            sync.Mutex
	accounts      map[string]Account
	accessTokens  map[string]string // token -> identifier
	refreshTokens map[string]string // token -> identifier
	sales         []Sale
	saleIndex     map[string]int // client id -> index into sales
	calls         map[string]int
	requests      []RecordedRequest
	faults        faults
}

type Option func(*Server)

func WithAccount(a Account) Option {
	return func(s *Server) {
		s.accounts[a.Identifier] = a
	}
}

func WithAccessTokenExpiry(expiry time.Duration) Option {
	return func(s *Server) {
		s.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithEnv enables route logging when env is DEV.
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func New(signingKey []byte, options ...Option) (*Server, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("[server New] signing key is required")
	}
	s := &Server{
		mux:               http.NewServeMux(),
		signingKey:        signingKey,
		accessTokenExpiry: 15 * time.Minute,
		nowFunc:           time.Now,
		accounts:          make(map[string]Account),
		accessTokens:      make(map[string]string),
		refreshTokens:     make(map[string]string),
		saleIndex:         make(map[string]int),
		calls:             make(map[string]int),
		faults:            faults{saleStatus: make(map[string]int)},
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Calls returns how many requests reached the route (offline requests are not counted).
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%s %-7s%s] %s", color, method, ResetColor, path)
}
