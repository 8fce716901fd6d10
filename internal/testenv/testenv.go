// Package testenv wires a logged-in client stack against the in-process backend for tests.
package testenv

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/gateway"
	"github.com/jrsteele09/go-pos-client/server"
	"github.com/jrsteele09/go-pos-client/session"
	"github.com/jrsteele09/go-pos-client/store"
	"github.com/jrsteele09/go-pos-client/store/memstore"
	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/stretchr/testify/require"
)

const (
	Identifier = "cashier@example.com"
	Secret     = "pa55word"
	UserID     = "user-1"
	TenantID   = "tenant-1"
	BusinessID = "biz-1"
)

type Env struct {
	Backend *server.Server
	Store   store.Store
	Client  *api.Client
	Tokens  *session.TokenStore
	Manager *session.Manager
	Gateway *gateway.Gateway
}

// New starts a backend, logs in and returns the stack. Pass a store to share persistence
// across restarts; nil uses a fresh memstore.
func New(t *testing.T, st store.Store) *Env {
	t.Helper()
	backend, err := server.New([]byte("test-signing-key"), server.WithAccount(server.Account{
		Identifier: Identifier,
		Secret:     Secret,
		UserID:     UserID,
		Name:       "Sam",
		Tenant:     tenants.Tenant{ID: TenantID, Name: "Corner Shop Ltd"},
		Business:   tenants.Business{ID: BusinessID, TenantID: TenantID, Name: "High Street"},
	}))
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	if st == nil {
		st = memstore.New()
	}
	client, err := api.NewClient(srv.URL+server.APIPrefix, api.WithTimeout(2*time.Second))
	require.NoError(t, err)
	tokens, err := session.NewTokenStore(st)
	require.NoError(t, err)
	manager, err := session.NewManager(tokens, client)
	require.NoError(t, err)
	_, err = manager.Login(context.Background(), Identifier, Secret)
	require.NoError(t, err)
	gw, err := gateway.New(client, manager)
	require.NoError(t, err)

	return &Env{
		Backend: backend,
		Store:   st,
		Client:  client,
		Tokens:  tokens,
		Manager: manager,
		Gateway: gw,
	}
}
