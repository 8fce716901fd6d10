package sales_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/stretchr/testify/require"
)

func validRecord() sales.Record {
	r := sales.NewRecord("biz-1", "user-1", "cash", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	r.Total = 25.00
	return r
}

func TestNewRecord(t *testing.T) {
	a := validRecord()
	b := validRecord()
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, sales.StatusCompleted, a.Status)
	require.Equal(t, sales.SyncPending, a.SyncStatus)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *sales.Record)
		wantErr bool
	}{
		{"total only", func(r *sales.Record) {}, false},
		{"consistent totals", func(r *sales.Record) {
			r.Items = []sales.LineItem{{ProductID: "p1", Name: "Coffee", Quantity: 2, UnitPrice: 10}}
			r.Subtotal, r.Tax, r.Discount, r.Total = 20, 7, 2, 25
		}, false},
		{"fractional cents", func(r *sales.Record) { r.Total = 25.005 }, true},
		{"fractional cents in unit price", func(r *sales.Record) {
			r.Items = []sales.LineItem{{ProductID: "p1", Name: "Coffee", Quantity: 1, UnitPrice: 2.505}}
		}, true},
		{"missing id", func(r *sales.Record) { r.ID = "" }, true},
		{"missing business", func(r *sales.Record) { r.BusinessID = "" }, true},
		{"missing payment method", func(r *sales.Record) { r.PaymentMethod = "" }, true},
		{"negative total", func(r *sales.Record) { r.Total = -1 }, true},
		{"unknown status", func(r *sales.Record) { r.Status = "refunded" }, true},
		{"missing created at", func(r *sales.Record) { r.CreatedAt = time.Time{} }, true},
		{"items do not add up", func(r *sales.Record) {
			r.Items = []sales.LineItem{{ProductID: "p1", Name: "Coffee", Quantity: 1, UnitPrice: 10}}
			r.Subtotal, r.Total = 12, 12
		}, true},
		{"total does not add up", func(r *sales.Record) { r.Subtotal, r.Tax, r.Total = 20, 2, 25 }, true},
		{"invalid line item", func(r *sales.Record) {
			r.Items = []sales.LineItem{{ProductID: "p1", Name: "Coffee", Quantity: 0, UnitPrice: 10}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := sales.Validate(r)
			if tt.wantErr {
				require.ErrorIs(t, err, sales.ErrInvalidSale)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSyncStatus_CanTransition(t *testing.T) {
	require.True(t, sales.SyncPending.CanTransition(sales.SyncSynced))
	require.True(t, sales.SyncPending.CanTransition(sales.SyncFailed))
	require.True(t, sales.SyncFailed.CanTransition(sales.SyncPending))
	require.False(t, sales.SyncFailed.CanTransition(sales.SyncSynced))
	require.False(t, sales.SyncSynced.CanTransition(sales.SyncPending))
	require.False(t, sales.SyncSynced.CanTransition(sales.SyncFailed))
}
