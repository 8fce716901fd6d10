package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/internal/metrics"
	"github.com/jrsteele09/go-pos-client/internal/utils"
	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Auth endpoints. The gateway never retries these after a 401.
const (
	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
)

const (
	defaultRefreshTimeout = 10 * time.Second
	refreshFlightKey      = "refresh"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"password"`
}

type loginResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         User             `json:"user"`
	Tenant       tenants.Tenant   `json:"tenant"`
	Business     tenants.Business `json:"business"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Manager owns the single live Session. Auth calls go straight to the transport so that
// refresh can never recurse through the gateway.
type Manager struct {
	tokens         *TokenStore
	sender         api.Sender
	refreshTimeout time.Duration
	nowFunc        func() time.Time
	flight         singleflight.Group
	events         *broker

	mu      sync.RWMutex
	session *Session
	state   State
	// generation changes on every login, logout and expiry so a refresh that
	// started against an older session cannot overwrite a newer one.
	generation uint64
	cached     tenants.Context
}

type ManagerOption func(*Manager)

func WithRefreshTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshTimeout = timeout
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager restores any persisted session from tokens.
func NewManager(tokens *TokenStore, sender api.Sender, options ...ManagerOption) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("[NewManager] token store is required")
	}
	if sender == nil {
		return nil, errors.New("[NewManager] sender is required")
	}

	m := &Manager{
		tokens:         tokens,
		sender:         sender,
		refreshTimeout: defaultRefreshTimeout,
		nowFunc:        time.Now,
		events:         newBroker(),
		state:          StateAnonymous,
	}
	for _, opt := range options {
		opt(m)
	}

	sess, err := tokens.Load()
	if err != nil {
		return nil, errors.Wrap(err, "[NewManager] restore session")
	}
	if sess != nil {
		m.session = sess
		m.state = StateAuthenticated
	}
	if m.cached, err = tokens.CachedContext(); err != nil {
		return nil, errors.Wrap(err, "[NewManager] cached tenant context")
	}
	return m, nil
}

// Subscribe registers l for lifecycle events until the returned func is called.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	return m.events.subscribe(l)
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current returns a copy of the live session, or nil when anonymous.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	sess := *m.session
	return &sess
}

// Login exchanges credentials for a session. Credential rejections return ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (*Session, error) {
	resp, err := m.sender.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   loginRequest{Identifier: identifier, Secret: secret},
	})
	if err != nil {
		if isCredentialRejection(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, errors.Wrap(err, "[Manager.Login]")
	}

	var body loginResponse
	if err := resp.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "[Manager.Login]")
	}
	if body.AccessToken == "" {
		return nil, errors.New("[Manager.Login] response is missing accessToken")
	}

	sess := Session{
		AccessToken:       body.AccessToken,
		RefreshToken:      body.RefreshToken,
		User:              body.User,
		Tenant:            body.Tenant,
		Business:          body.Business,
		ExpiresAtEstimate: estimateExpiry(body.AccessToken),
	}

	m.mu.Lock()
	if err := m.tokens.Save(sess); err != nil {
		m.mu.Unlock()
		return nil, errors.Wrap(err, "[Manager.Login] persist session")
	}
	m.session = &sess
	m.state = StateAuthenticated
	m.generation++
	m.cached = tenants.Context{
		TenantID:   utils.FirstNonEmpty(sess.TenantID(), m.cached.TenantID),
		BusinessID: utils.FirstNonEmpty(sess.BusinessID(), m.cached.BusinessID),
	}
	m.mu.Unlock()

	log.Info().Str("user_id", sess.User.ID).Str("tenant_id", sess.TenantID()).Msg("logged in")
	m.events.emit(Event{Type: EventLoggedIn, At: m.nowFunc()})

	out := sess
	return &out, nil
}

// AccessToken returns the current token without a network call and without checking expiry.
func (m *Manager) AccessToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return "", ErrNotAuthenticated
	}
	return m.session.AccessToken, nil
}

// TenantContext returns the session's tenant and business, falling back to the last cached
// values when the session is missing either of them.
func (m *Manager) TenantContext() tenants.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tenantContextLocked()
}

func (m *Manager) tenantContextLocked() tenants.Context {
	var tc tenants.Context
	if m.session != nil {
		tc = tenants.Context{TenantID: m.session.TenantID(), BusinessID: m.session.BusinessID()}
	}
	tc.TenantID = utils.FirstNonEmpty(tc.TenantID, m.cached.TenantID)
	tc.BusinessID = utils.FirstNonEmpty(tc.BusinessID, m.cached.BusinessID)
	return tc
}

// Credentials snapshots the token and tenant context under one lock.
func (m *Manager) Credentials() (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Credentials{}, ErrNotAuthenticated
	}
	return Credentials{
		Token:  m.session.oauth2Token(),
		Tenant: m.tenantContextLocked(),
	}, nil
}

// TokenSource exposes the live access token to oauth2-aware collaborators. It never refreshes.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return tokenSource{m: m}
}

type tokenSource struct {
	m *Manager
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	creds, err := ts.m.Credentials()
	if err != nil {
		return nil, err
	}
	return creds.Token, nil
}

// Refresh obtains a new access token. rejected is the token the caller saw fail; if the
// session already moved past it the current token is returned without a network call.
// Concurrent callers share one in-flight refresh.
func (m *Manager) Refresh(ctx context.Context, rejected string) (string, error) {
	if token, ok := m.rotatedPast(rejected); ok {
		return token, nil
	}

	ch := m.flight.DoChan(refreshFlightKey, func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), rejected)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "[Manager.Refresh] abandoned")
	}
}

func (m *Manager) rotatedPast(rejected string) (string, bool) {
	if rejected == "" {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session != nil && m.session.AccessToken != rejected {
		return m.session.AccessToken, true
	}
	return "", false
}

func (m *Manager) refresh(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	if rejected != "" && m.session.AccessToken != rejected {
		token := m.session.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	generation := m.generation
	refreshToken := m.session.RefreshToken
	if refreshToken == "" {
		m.mu.Unlock()
		reason := errors.New("no refresh token available")
		m.expire(generation, reason)
		metrics.SessionRefreshes.WithLabelValues(metrics.ResultExpired).Inc()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, reason)
	}
	m.state = StateRefreshing
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	resp, err := m.sender.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   RefreshPath,
		Body:   refreshRequest{RefreshToken: refreshToken},
	})
	if err != nil {
		if isTerminalRefreshFailure(err) {
			m.expire(generation, err)
			metrics.SessionRefreshes.WithLabelValues(metrics.ResultExpired).Inc()
			return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		m.endRefreshing(generation)
		metrics.SessionRefreshes.WithLabelValues(metrics.ResultTransient).Inc()
		log.Warn().Err(err).Msg("token refresh failed, keeping session")
		return "", errors.Wrap(err, "[Manager.Refresh]")
	}

	var body refreshResponse
	if err := resp.Decode(&body); err != nil || body.AccessToken == "" {
		m.endRefreshing(generation)
		metrics.SessionRefreshes.WithLabelValues(metrics.ResultTransient).Inc()
		if err == nil {
			err = errors.New("response is missing accessToken")
		}
		return "", errors.Wrap(err, "[Manager.Refresh]")
	}

	m.mu.Lock()
	if m.session == nil || m.generation != generation {
		m.mu.Unlock()
		return "", errors.Wrap(ErrNotAuthenticated, "[Manager.Refresh] session ended during refresh")
	}
	updated := *m.session
	updated.AccessToken = body.AccessToken
	if body.RefreshToken != "" {
		updated.RefreshToken = body.RefreshToken
	}
	updated.ExpiresAtEstimate = estimateExpiry(body.AccessToken)
	if err := m.tokens.SaveTokens(updated.AccessToken, updated.RefreshToken, updated.ExpiresAtEstimate); err != nil {
		m.state = StateAuthenticated
		m.mu.Unlock()
		return "", errors.Wrap(err, "[Manager.Refresh] persist tokens")
	}
	m.session = &updated
	m.state = StateAuthenticated
	m.mu.Unlock()

	metrics.SessionRefreshes.WithLabelValues(metrics.ResultOK).Inc()
	log.Debug().Msg("access token refreshed")
	m.events.emit(Event{Type: EventRefreshed, At: m.nowFunc()})
	return updated.AccessToken, nil
}

func (m *Manager) endRefreshing(generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == generation && m.session != nil {
		m.state = StateAuthenticated
	}
}

// expire clears the session and broadcasts. Only the first call per session broadcasts.
func (m *Manager) expire(generation uint64, reason error) {
	m.mu.Lock()
	if m.session == nil || m.generation != generation {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.state = StateAnonymous
	m.generation++
	clearErr := m.tokens.Clear()
	m.mu.Unlock()

	if clearErr != nil {
		log.Err(clearErr).Msg("failed to clear persisted session")
	}
	log.Warn().Err(reason).Msg("session expired")
	m.events.emit(Event{Type: EventSessionExpired, Reason: reason, At: m.nowFunc()})
}

// Logout attempts server-side invalidation and then always clears the local session.
// Only a failure to clear local state is returned.
func (m *Manager) Logout(ctx context.Context) error {
	creds, err := m.Credentials()
	if err != nil {
		return nil
	}

	if _, err := m.sender.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   LogoutPath,
		Header: creds.Header(),
	}); err != nil {
		log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
	}

	m.mu.Lock()
	wasLive := m.session != nil
	m.session = nil
	m.state = StateAnonymous
	m.generation++
	clearErr := m.tokens.Clear()
	m.mu.Unlock()

	if wasLive {
		log.Info().Msg("logged out")
		m.events.emit(Event{Type: EventLoggedOut, At: m.nowFunc()})
	}
	return errors.Wrap(clearErr, "[Manager.Logout]")
}

// SwitchBusiness changes the business attached to subsequent calls.
func (m *Manager) SwitchBusiness(business tenants.Business) error {
	if business.ID == "" {
		return errors.New("[Manager.SwitchBusiness] business id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNotAuthenticated
	}
	if err := m.tokens.SaveBusiness(business); err != nil {
		return errors.Wrap(err, "[Manager.SwitchBusiness]")
	}
	updated := *m.session
	updated.Business = business
	m.session = &updated
	m.cached.BusinessID = business.ID
	return nil
}

func (s Session) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       utils.Value(s.ExpiresAtEstimate),
	}
}

// estimateExpiry reads exp without verifying the signature. The server remains the authority.
func estimateExpiry(raw string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	return utils.Ptr(exp.Time)
}

func isCredentialRejection(err error) bool {
	return errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrValidation) || errors.Is(err, api.ErrRejected)
}

// isTerminalRefreshFailure reports whether the server refused the refresh token itself.
func isTerminalRefreshFailure(err error) bool {
	code := api.StatusCode(err)
	return code >= 400 && code < 500 && !api.IsTransient(err)
}
