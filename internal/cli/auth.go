package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jrsteele09/go-pos-client/session"
	"github.com/spf13/cobra"
)

type LoginOptions struct {
	*RootOptions
	Identifier string
	Secret     string
}

type sessionView struct {
	State      string     `json:"state"`
	UserID     string     `json:"userId,omitempty"`
	UserName   string     `json:"userName,omitempty"`
	TenantID   string     `json:"tenantId,omitempty"`
	BusinessID string     `json:"businessId,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAtEstimate,omitempty"`
}

func newSessionView(m *session.Manager) sessionView {
	v := sessionView{State: m.State().String()}
	tc := m.TenantContext()
	v.TenantID, v.BusinessID = tc.TenantID, tc.BusinessID
	if sess := m.Current(); sess != nil {
		v.UserID = sess.User.ID
		v.UserName = sess.User.Name
		v.ExpiresAt = sess.ExpiresAtEstimate
	}
	return v
}

func (v sessionView) print(w io.Writer) error {
	if v.UserID == "" {
		_, err := fmt.Fprintf(w, "%s\n", v.State)
		return err
	}
	_, err := fmt.Fprintf(w, "%s as %s (tenant %s, business %s)\n", v.State, v.UserID, v.TenantID, v.BusinessID)
	if err == nil && v.ExpiresAt != nil {
		_, err = fmt.Fprintf(w, "token expires around %s\n", v.ExpiresAt.Local().Format(time.RFC1123))
	}
	return err
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, func(a *app) error {
				if _, err := a.manager.Login(cmd.Context(), opts.Identifier, opts.Secret); err != nil {
					return err
				}
				v := newSessionView(a.manager)
				return printResult(cmd, opts.RootOptions, v, v.print)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Identifier, "identifier", "", "user identifier (email or username)")
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "password")
	_ = cmd.MarkFlagRequired("identifier")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the session; queued sales are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.manager.Logout(cmd.Context()); err != nil {
					return err
				}
				v := newSessionView(a.manager)
				return printResult(cmd, opts, v, v.print)
			})
		},
	}
}

func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				v := newSessionView(a.manager)
				return printResult(cmd, opts, v, v.print)
			})
		},
	}
}
