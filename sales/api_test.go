package sales_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-pos-client/api"
	"github.com/jrsteele09/go-pos-client/internal/testenv"
	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/stretchr/testify/require"
)

func TestAPI_CreateAndList(t *testing.T) {
	env := testenv.New(t, nil)
	salesAPI, err := sales.NewAPI(env.Gateway)
	require.NoError(t, err)

	rec := validRecord()
	conf, err := salesAPI.Create(context.Background(), rec)
	require.NoError(t, err)
	require.NotEmpty(t, conf.ID)
	require.Equal(t, rec.ID, conf.ClientID)
	require.EqualValues(t, 1, conf.Sequence)

	t.Run("duplicate is a conflict", func(t *testing.T) {
		_, err := salesAPI.Create(context.Background(), rec)
		require.ErrorIs(t, err, api.ErrConflict)
		require.Equal(t, conf.ID, sales.ConflictServerID(err))
		require.Len(t, env.Backend.Sales(), 1)
	})

	t.Run("list filters by business", func(t *testing.T) {
		list, err := salesAPI.List(context.Background(), sales.Filter{BusinessID: testenv.BusinessID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, rec.ID, list[0].ClientID)
		require.Equal(t, 25.00, list[0].Total)

		list, err = salesAPI.List(context.Background(), sales.Filter{BusinessID: "other"})
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestConflictServerID_NonConflict(t *testing.T) {
	require.Empty(t, sales.ConflictServerID(nil))
	require.Empty(t, sales.ConflictServerID(&api.StatusError{StatusCode: 500, Kind: api.ErrServer}))
}

func TestNewAPI_RequiresGateway(t *testing.T) {
	_, err := sales.NewAPI(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "gateway is required")
}
