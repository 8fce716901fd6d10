package gateway_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/gateway"
	"github.com/jrsteele09/go-pos-client/server"
	"github.com/jrsteele09/go-pos-client/session"
	"github.com/jrsteele09/go-pos-client/store/memstore"
	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeSession hands out token-1, token-2, ... on each refresh.
type fakeSession struct {
	mu           sync.Mutex
	token        string
	refreshCalls int
	refreshErr   error
}

func (s *fakeSession) Credentials() (session.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return session.Credentials{}, session.ErrNotAuthenticated
	}
	return session.Credentials{
		Token:  &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"},
		Tenant: tenants.Context{TenantID: "tenant-1", BusinessID: "biz-1"},
	}, nil
}

func (s *fakeSession) Refresh(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.token = fmt.Sprintf("token-%d", s.refreshCalls+1)
	return s.token, nil
}

// scriptedSender replies with the queued errors in order, then succeeds.
type scriptedSender struct {
	mu      sync.Mutex
	replies []error
	sent    []api.Request
}

func (s *scriptedSender) Send(_ context.Context, req api.Request) (*api.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	if len(s.replies) > 0 {
		err := s.replies[0]
		s.replies = s.replies[1:]
		if err != nil {
			return nil, err
		}
	}
	return &api.Response{StatusCode: http.StatusOK}, nil
}

func statusError(code int) error {
	return &api.StatusError{Method: http.MethodPost, Path: "/sales", StatusCode: code, Kind: api.ClassifyStatus(code)}
}

type testFixture struct {
	sender  *scriptedSender
	session *fakeSession
	gateway *gateway.Gateway
}

func setupTestFixture(t *testing.T, replies ...error) *testFixture {
	t.Helper()
	f := &testFixture{
		sender:  &scriptedSender{replies: replies},
		session: &fakeSession{token: "token-1"},
	}
	g, err := gateway.New(f.sender, f.session)
	require.NoError(t, err)
	f.gateway = g
	return f
}

func TestGateway_AttachesSessionHeaders(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.gateway.Execute(context.Background(), api.Request{
		Method: http.MethodGet,
		Path:   "/sales",
		Header: http.Header{"X-Request-ID": {"abc"}},
	})
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 1)

	h := f.sender.sent[0].Header
	require.Equal(t, "Bearer token-1", h.Get("Authorization"))
	require.Equal(t, "tenant-1", h.Get("X-Tenant-ID"))
	require.Equal(t, "biz-1", h.Get("X-Business-ID"))
	require.Equal(t, "abc", h.Get("X-Request-ID"))
}

// TestGateway_SessionHeadersReplaceCallerHeaders checks caller headers of any case never survive next to the session's
func TestGateway_SessionHeadersReplaceCallerHeaders(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.gateway.Execute(context.Background(), api.Request{
		Method: http.MethodGet,
		Path:   "/sales",
		Header: http.Header{
			"authorization": {"Bearer stale"},
			"x-tenant-id":   {"tenant-9"},
			"x-request-id":  {"abc"},
		},
	})
	require.NoError(t, err)
	require.Len(t, f.sender.sent, 1)

	h := f.sender.sent[0].Header
	require.Equal(t, []string{"Bearer token-1"}, h.Values("Authorization"))
	require.Equal(t, []string{"tenant-1"}, h.Values("X-Tenant-ID"))
	require.Equal(t, "abc", h.Get("X-Request-ID"))
	require.NotContains(t, h, "authorization")
}

func TestGateway_SessionHeadersOnTheWire(t *testing.T) {
	got := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Values("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	g, err := gateway.New(client, &fakeSession{token: "token-1"})
	require.NoError(t, err)

	_, err = g.Execute(context.Background(), api.Request{
		Method: http.MethodGet,
		Path:   "/sales",
		Header: http.Header{"authorization": {"Bearer stale"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Bearer token-1"}, <-got)
}

// TestGateway_RetriesOnceAfterRefresh checks a 401 is absorbed by a refresh and one resend
func TestGateway_RetriesOnceAfterRefresh(t *testing.T) {
	f := setupTestFixture(t, statusError(http.StatusUnauthorized))

	_, err := f.gateway.Execute(context.Background(), api.Request{Method: http.MethodPost, Path: "/sales"})
	require.NoError(t, err)
	require.Equal(t, 1, f.session.refreshCalls)
	require.Len(t, f.sender.sent, 2)
	require.Equal(t, "Bearer token-1", f.sender.sent[0].Header.Get("Authorization"))
	require.Equal(t, "Bearer token-2", f.sender.sent[1].Header.Get("Authorization"))
}

func TestGateway_SecondUnauthorizedIsReturned(t *testing.T) {
	f := setupTestFixture(t, statusError(http.StatusUnauthorized), statusError(http.StatusUnauthorized))

	_, err := f.gateway.Execute(context.Background(), api.Request{Method: http.MethodPost, Path: "/sales"})
	require.ErrorIs(t, err, api.ErrUnauthorized)
	require.Equal(t, 1, f.session.refreshCalls)
	require.Len(t, f.sender.sent, 2)
}

func TestGateway_NonAuthFailuresAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"server error", statusError(http.StatusInternalServerError), api.ErrServer},
		{"conflict", statusError(http.StatusConflict), api.ErrConflict},
		{"validation", statusError(http.StatusBadRequest), api.ErrValidation},
		{"network", &api.TransportError{Method: http.MethodPost, Path: "/sales", Kind: api.ErrNetwork, Err: fmt.Errorf("dial")}, api.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, tt.err)

			_, err := f.gateway.Execute(context.Background(), api.Request{Method: http.MethodPost, Path: "/sales"})
			require.ErrorIs(t, err, tt.want)
			require.Len(t, f.sender.sent, 1)
			require.Equal(t, 0, f.session.refreshCalls)
		})
	}
}

func TestGateway_AuthPathsAreNotRetried(t *testing.T) {
	f := setupTestFixture(t, statusError(http.StatusUnauthorized))

	_, err := f.gateway.Execute(context.Background(), api.Request{Method: http.MethodPost, Path: session.LoginPath})
	require.ErrorIs(t, err, api.ErrUnauthorized)
	require.Equal(t, 0, f.session.refreshCalls)
}

func TestGateway_RefreshFailureSurfaces(t *testing.T) {
	f := setupTestFixture(t, statusError(http.StatusUnauthorized))
	f.session.refreshErr = session.ErrSessionExpired

	_, err := f.gateway.Execute(context.Background(), api.Request{Method: http.MethodPost, Path: "/sales"})
	require.ErrorIs(t, err, session.ErrSessionExpired)
	require.Len(t, f.sender.sent, 1)
}

func TestGateway_RequiresSession(t *testing.T) {
	f := setupTestFixture(t)
	f.session.token = ""

	_, err := f.gateway.Execute(context.Background(), api.Request{Method: http.MethodGet, Path: "/sales"})
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
	require.Empty(t, f.sender.sent)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := gateway.New(nil, &fakeSession{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sender is required")

	_, err = gateway.New(&scriptedSender{}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "session is required")
}

// TestGateway_ConcurrentExpiryAgainstBackend checks concurrent 401s share one refresh and
// every call is sent with headers from a single session
func TestGateway_ConcurrentExpiryAgainstBackend(t *testing.T) {
	backend, err := server.New([]byte("test-signing-key"), server.WithAccount(server.Account{
		Identifier: "cashier",
		Secret:     "secret",
		UserID:     "user-1",
		Tenant:     tenants.Tenant{ID: "tenant-1"},
		Business:   tenants.Business{ID: "biz-1", TenantID: "tenant-1"},
	}))
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(srv.URL+server.APIPrefix, api.WithTimeout(2*time.Second))
	require.NoError(t, err)
	tokens, err := session.NewTokenStore(memstore.New())
	require.NoError(t, err)
	manager, err := session.NewManager(tokens, client)
	require.NoError(t, err)
	_, err = manager.Login(context.Background(), "cashier", "secret")
	require.NoError(t, err)

	g, err := gateway.New(client, manager)
	require.NoError(t, err)

	backend.ExpireAccessTokens()
	backend.SetRefreshDelay(50 * time.Millisecond)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Execute(context.Background(), api.Request{Method: http.MethodGet, Path: "/sales"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, backend.Calls(server.RouteAuthRefresh))

	for _, r := range backend.Requests() {
		if r.Path != server.RouteSales {
			continue
		}
		require.NotEmpty(t, r.Authorization)
		require.Equal(t, "tenant-1", r.TenantID)
		require.Equal(t, "biz-1", r.BusinessID)
	}
}
