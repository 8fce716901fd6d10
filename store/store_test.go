package store_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jrsteele09/go-pos-client/store"
	"github.com/jrsteele09/go-pos-client/store/memstore"
	"github.com/stretchr/testify/require"
)

const testSealingKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type tenantSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestKey_SaveLoadDelete(t *testing.T) {
	s := memstore.New()
	key := store.NewKey[tenantSnapshot]("session.tenant")

	_, err := key.Load(s)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, key.Save(s, tenantSnapshot{ID: "tenant-1", Name: "Corner Shop"}))

	got, err := key.Load(s)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", got.ID)

	require.NoError(t, s.Apply(key.Delete()))
	_, err = key.Load(s)
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestApply_MultipleOps checks that a batch of writes and removes lands together
func TestApply_MultipleOps(t *testing.T) {
	s := memstore.New()
	require.NoError(t, store.Set(s, "a", []byte("1")))

	require.NoError(t, s.Apply(
		store.Op{Key: "a", Remove: true},
		store.Op{Key: "b", Value: []byte("2")},
		store.Op{Key: "c", Value: []byte("3")},
	))

	_, err := s.Get("a")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, 2, s.Len())

	require.NoError(t, store.Remove(s, "missing"))
}

func TestSealedStore(t *testing.T) {
	key, err := store.ParseKey(testSealingKey)
	require.NoError(t, err)

	inner := memstore.New()
	sealed, err := store.NewSealed(inner, key)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Set(sealed, "session.refresh_token", []byte("refresh-abc")))

		raw, err := inner.Get("session.refresh_token")
		require.NoError(t, err)
		require.False(t, bytes.Contains(raw, []byte("refresh-abc")), "inner store must not hold plaintext")

		plain, err := sealed.Get("session.refresh_token")
		require.NoError(t, err)
		require.Equal(t, "refresh-abc", string(plain))
	})

	t.Run("tampered value", func(t *testing.T) {
		raw, err := inner.Get("session.refresh_token")
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff
		require.NoError(t, store.Set(inner, "session.refresh_token", raw))

		_, err = sealed.Get("session.refresh_token")
		require.True(t, errors.Is(err, store.ErrTampered))
	})

	t.Run("value moved to another key", func(t *testing.T) {
		require.NoError(t, store.Set(sealed, "k1", []byte("v1")))
		raw, err := inner.Get("k1")
		require.NoError(t, err)
		require.NoError(t, store.Set(inner, "k2", raw))

		_, err = sealed.Get("k2")
		require.ErrorIs(t, err, store.ErrTampered)
	})

	t.Run("missing key passes through", func(t *testing.T) {
		_, err := sealed.Get("nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestParseKey_InvalidLength(t *testing.T) {
	_, err := store.ParseKey("abcd")
	require.Error(t, err)
	require.Contains(t, err.Error(), "key must be 32 bytes")
}
