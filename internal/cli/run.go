package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-pos-client/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the offline queue in sync until interrupted",
		Long: `Start the sync engine. It runs once at start, then every POS_SYNC_INTERVAL,
backing off after failures. Send SIGHUP to signal that connectivity is back.
Metrics are served on POS_METRICS_ADDR when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd, opts.Config.GetAppName())
			return withApp(opts, func(a *app) error {
				return runEngine(cmd.Context(), opts, a)
			})
		},
	}
}

func runEngine(ctx context.Context, opts *RootOptions, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubscribe := a.manager.Subscribe(func(e session.Event) {
		if e.Type == session.EventSessionExpired {
			log.Warn().Msg("session expired, sales keep queueing until `posclient login`")
		}
	})
	defer unsubscribe()

	reconnect := make(chan os.Signal, 1)
	signal.Notify(reconnect, syscall.SIGHUP)
	defer signal.Stop(reconnect)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reconnect:
				a.engine.ConnectivityRestored()
			}
		}
	}()

	var metricsServer *http.Server
	if addr := opts.Config.GetMetricsAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go listenAndServe(metricsServer)
	}

	err := a.engine.Run(ctx)
	if metricsServer != nil {
		if serr := shutdown(metricsServer); serr != nil {
			log.Err(serr).Msg("metrics server shutdown failed")
		}
	}
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("sync engine stopped")
		return nil
	}
	return err
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Str("addr", server.Addr).Msg("server.ListenAndServe")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(cmd *cobra.Command, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(cmd.OutOrStdout(), myFigure.String())
}
