package session_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-pos-client/session"
	"github.com/jrsteele09/go-pos-client/store"
	"github.com/jrsteele09/go-pos-client/store/memstore"
	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/stretchr/testify/require"
)

func TestTokenStore_SaveLoadClear(t *testing.T) {
	ts, err := session.NewTokenStore(memstore.New())
	require.NoError(t, err)

	sess, err := ts.Load()
	require.NoError(t, err)
	require.Nil(t, sess)

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ts.Save(session.Session{
		AccessToken:       "access-1",
		RefreshToken:      "refresh-1",
		User:              session.User{ID: "user-1"},
		Tenant:            tenants.Tenant{ID: "tenant-1"},
		Business:          tenants.Business{ID: "biz-1", TenantID: "tenant-1"},
		ExpiresAtEstimate: &exp,
	}))

	sess, err = ts.Load()
	require.NoError(t, err)
	require.Equal(t, "refresh-1", sess.RefreshToken)
	require.Equal(t, "biz-1", sess.BusinessID())
	require.True(t, exp.Equal(*sess.ExpiresAtEstimate))

	require.NoError(t, ts.SaveTokens("access-2", "refresh-2", nil))
	sess, err = ts.Load()
	require.NoError(t, err)
	require.Equal(t, "access-2", sess.AccessToken)
	require.Nil(t, sess.ExpiresAtEstimate)
	require.Equal(t, "user-1", sess.User.ID)

	require.NoError(t, ts.Clear())
	sess, err = ts.Load()
	require.NoError(t, err)
	require.Nil(t, sess)

	cached, err := ts.CachedContext()
	require.NoError(t, err)
	require.Equal(t, tenants.Context{TenantID: "tenant-1", BusinessID: "biz-1"}, cached)
}

func TestTokenStore_CorruptedValue(t *testing.T) {
	s := memstore.New()
	ts, err := session.NewTokenStore(s)
	require.NoError(t, err)
	require.NoError(t, store.Set(s, "session.access_token", []byte(`"access-1"`)))
	require.NoError(t, store.Set(s, "session.user", []byte(`{not json`)))

	_, err = ts.Load()
	require.Error(t, err)
}

func TestNewTokenStore_RequiresStore(t *testing.T) {
	_, err := session.NewTokenStore(nil)
	require.Error(t, err)
}
