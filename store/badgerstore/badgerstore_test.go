package badgerstore_test

import (
	"testing"

	"github.com/jrsteele09/go-pos-client/store"
	"github.com/jrsteele09/go-pos-client/store/badgerstore"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	bs, err := badgerstore.Open(badgerstore.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, bs.Apply(
		store.Op{Key: "session.access_token", Value: []byte(`"access-1"`)},
		store.Op{Key: "queue.entries", Value: []byte(`[]`)},
	))
	require.NoError(t, bs.Close())

	reopened, err := badgerstore.Open(badgerstore.DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get("session.access_token")
	require.NoError(t, err)
	require.Equal(t, `"access-1"`, string(v))
}

func TestBadgerStore_RemoveAndNotFound(t *testing.T) {
	bs, err := badgerstore.Open(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	defer bs.Close()

	_, err = bs.Get("missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, store.Set(bs, "k", []byte("v")))
	require.NoError(t, store.Remove(bs, "k"))
	_, err = bs.Get("k")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := badgerstore.Open(badgerstore.Config{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "path is required")
}
