package cli

import (
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-pos-client/server"
	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type DevServerOptions struct {
	*RootOptions
	Addr         string
	Identifier   string
	Secret       string
	TenantID     string
	BusinessID   string
	AccessExpiry time.Duration
}

func NewDevServerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevServerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Serve an in-memory POS backend for local development",
		Long: `Serve the /auth and /sales endpoints from memory with a single account.
Point POS_API_BASE_URL at http://<addr>/api to use it.

Example:
  posclient dev-server --addr :8080 --access-expiry 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevServer(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.Identifier, "identifier", "cashier@example.com", "account identifier")
	cmd.Flags().StringVar(&opts.Secret, "secret", "password", "account password")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "tenant-dev", "tenant id")
	cmd.Flags().StringVar(&opts.BusinessID, "business", "business-dev", "business id")
	cmd.Flags().DurationVar(&opts.AccessExpiry, "access-expiry", 15*time.Minute, "access token lifetime")

	return cmd
}

func runDevServer(opts *DevServerOptions) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return errors.Wrap(err, "[runDevServer] signing key")
	}
	backend, err := server.New(key,
		server.WithEnv(opts.Config.GetEnv()),
		server.WithAccessTokenExpiry(opts.AccessExpiry),
		server.WithAccount(server.Account{
			Identifier: opts.Identifier,
			Secret:     opts.Secret,
			UserID:     "user-dev",
			Name:       "Dev Cashier",
			Tenant:     tenants.Tenant{ID: opts.TenantID, Name: "Dev Tenant"},
			Business:   tenants.Business{ID: opts.BusinessID, TenantID: opts.TenantID, Name: "Dev Shop"},
		}),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: opts.Addr, Handler: backend, ReadHeaderTimeout: 5 * time.Second}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
