package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/jrsteele09/go-pos-client/session"
	"github.com/jrsteele09/go-pos-client/syncer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type SaleOptions struct {
	*RootOptions
	Total         float64
	Subtotal      float64
	Tax           float64
	Discount      float64
	PaymentMethod string
	Items         []string
	Offline       bool
}

type saleView struct {
	ID         string           `json:"id"`
	Total      float64          `json:"total"`
	SyncStatus sales.SyncStatus `json:"syncStatus"`
	Sync       *syncer.Result   `json:"sync,omitempty"`
}

func NewSaleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Record a sale; it is queued locally and synced when possible",
		Long: `Record a completed sale against the current business.

The sale is written to the offline queue before any network call, so it is
safe even with no connectivity. Items use productId:name:quantity:unitPrice.

Example:
  posclient sale --total 25.00 --payment-method cash
  posclient sale --item p1:Coffee:2:3.50 --tax 0.70 --payment-method card`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, func(a *app) error {
				return recordSale(cmd, opts, a)
			})
		},
	}

	cmd.Flags().Float64Var(&opts.Total, "total", 0, "sale total (computed from items when omitted)")
	cmd.Flags().Float64Var(&opts.Subtotal, "subtotal", 0, "subtotal (computed from items when omitted)")
	cmd.Flags().Float64Var(&opts.Tax, "tax", 0, "tax amount")
	cmd.Flags().Float64Var(&opts.Discount, "discount", 0, "discount amount")
	cmd.Flags().StringVar(&opts.PaymentMethod, "payment-method", "cash", "payment method recorded with the sale")
	cmd.Flags().StringArrayVar(&opts.Items, "item", nil, "line item productId:name:quantity:unitPrice (repeatable)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "queue only, do not attempt a sync")

	return cmd
}

func recordSale(cmd *cobra.Command, opts *SaleOptions, a *app) error {
	sess := a.manager.Current()
	if sess == nil {
		return errors.Wrap(session.ErrNotAuthenticated, "log in before recording sales")
	}

	rec, err := buildRecord(opts, sess.User.ID, a.manager.TenantContext().BusinessID, time.Now())
	if err != nil {
		return err
	}
	if err := a.engine.Record(cmd.Context(), rec); err != nil {
		return err
	}

	v := saleView{ID: rec.ID, Total: rec.Total, SyncStatus: sales.SyncPending}
	if !opts.Offline {
		res := a.engine.RunOnce(cmd.Context())
		v.Sync = &res
		if status, ok := a.queue.Lookup(rec.ID); ok {
			v.SyncStatus = status
		}
	}
	return printResult(cmd, opts.RootOptions, v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "sale %s %.2f %s\n", v.ID, v.Total, v.SyncStatus)
		return err
	})
}

func buildRecord(opts *SaleOptions, userID, businessID string, now time.Time) (sales.Record, error) {
	rec := sales.NewRecord(businessID, userID, opts.PaymentMethod, now)
	for _, raw := range opts.Items {
		item, err := parseItem(raw)
		if err != nil {
			return sales.Record{}, err
		}
		rec.Items = append(rec.Items, item)
	}

	rec.Subtotal, rec.Tax, rec.Discount, rec.Total = opts.Subtotal, opts.Tax, opts.Discount, opts.Total
	if rec.Subtotal == 0 {
		for _, item := range rec.Items {
			rec.Subtotal += item.Amount()
		}
	}
	if rec.Total == 0 {
		rec.Total = rec.Subtotal + rec.Tax - rec.Discount
	}
	return rec, nil
}

// parseItem reads productId:name:quantity:unitPrice.
func parseItem(raw string) (sales.LineItem, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return sales.LineItem{}, fmt.Errorf("invalid item %q: want productId:name:quantity:unitPrice", raw)
	}
	qty, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return sales.LineItem{}, fmt.Errorf("invalid item %q quantity: %w", raw, err)
	}
	price, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return sales.LineItem{}, fmt.Errorf("invalid item %q unit price: %w", raw, err)
	}
	return sales.LineItem{ProductID: parts[0], Name: parts[1], Quantity: qty, UnitPrice: price}, nil
}
