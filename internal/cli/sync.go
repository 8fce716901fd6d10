package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-pos-client/queue"
	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/jrsteele09/go-pos-client/syncer"
	"github.com/spf13/cobra"
)

func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over the offline queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res := a.engine.RunOnce(cmd.Context())
				return printResult(cmd, opts, res, func(w io.Writer) error {
					return printSyncResult(w, res)
				})
			})
		},
	}
}

func printSyncResult(w io.Writer, res syncer.Result) error {
	_, err := fmt.Fprintf(w, "synced %d, failed %d, remaining %d\n", res.Synced, res.Failed, res.Remaining)
	if err == nil && res.LastError != "" {
		_, err = fmt.Fprintf(w, "last error: %s\n", res.LastError)
	}
	return err
}

type statusView struct {
	Pending int           `json:"pending"`
	Failed  int           `json:"failed"`
	Entries []queue.Entry `json:"entries"`
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List queued sales with their sync badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				counts := a.queue.Counts()
				v := statusView{Pending: counts.Pending, Failed: counts.Failed, Entries: a.queue.All()}
				return printResult(cmd, opts, v, v.print)
			})
		},
	}
}

func (v statusView) print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "pending %d, failed %d\n", v.Pending, v.Failed); err != nil {
		return err
	}
	if len(v.Entries) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTOTAL\tSYNC\tATTEMPTS\tLAST ERROR")
	for _, e := range v.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%d\t%s\n",
			e.ID(), e.Sale.CreatedAt.Local().Format(time.DateTime), e.Sale.Total, e.SyncStatus(), e.AttemptCount, e.LastError)
	}
	return tw.Flush()
}

type ReportOptions struct {
	*RootOptions
	PaymentMethod string
	AllBusinesses bool
}

func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "List sales confirmed by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, func(a *app) error {
				filter := sales.Filter{PaymentMethod: opts.PaymentMethod}
				if !opts.AllBusinesses {
					filter.BusinessID = a.manager.TenantContext().BusinessID
				}
				list, err := a.sales.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return printResult(cmd, opts.RootOptions, list, func(w io.Writer) error {
					return printRemoteSales(w, list)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.PaymentMethod, "payment-method", "", "only sales paid this way")
	cmd.Flags().BoolVar(&opts.AllBusinesses, "all-businesses", false, "include every business in the tenant")

	return cmd
}

func printRemoteSales(w io.Writer, list []sales.Remote) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSERVER ID\tCLIENT ID\tTOTAL\tPAYMENT")
	var total float64
	for _, s := range list {
		total += s.Total
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\n", s.Sequence, s.ID, s.ClientID, s.Total, s.PaymentMethod)
	}
	fmt.Fprintf(tw, "\t\t\t%.2f\t\n", total)
	return tw.Flush()
}
