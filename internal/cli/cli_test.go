package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/jrsteele09/go-pos-client/server"
	"github.com/jrsteele09/go-pos-client/tenants"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"login", "logout", "whoami", "sale", "sync", "status", "report", "run", "dev-server"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, sub.Name())
	}
	require.NotNil(t, cmd.PersistentFlags().Lookup("format"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	t.Setenv("ENV", "TEST")
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"whoami", "--format", "yaml"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid format")
}

func TestParseItem(t *testing.T) {
	item, err := parseItem("p1:Coffee:2:3.50")
	require.NoError(t, err)
	require.Equal(t, sales.LineItem{ProductID: "p1", Name: "Coffee", Quantity: 2, UnitPrice: 3.5}, item)

	_, err = parseItem("p1:Coffee:2")
	require.Error(t, err)
	_, err = parseItem("p1:Coffee:two:3.50")
	require.ErrorContains(t, err, "quantity")
	_, err = parseItem("p1:Coffee:2:free")
	require.ErrorContains(t, err, "unit price")
}

func TestBuildRecord_ComputesTotals(t *testing.T) {
	opts := &SaleOptions{
		PaymentMethod: "card",
		Items:         []string{"p1:Coffee:2:3.50", "p2:Cake:1:4.00"},
		Tax:           1.10,
	}
	rec, err := buildRecord(opts, "user-1", "biz-1", time.Now())
	require.NoError(t, err)
	require.Len(t, rec.Items, 2)
	require.InDelta(t, 11.00, rec.Subtotal, 0.001)
	require.InDelta(t, 12.10, rec.Total, 0.001)
	require.Equal(t, "biz-1", rec.BusinessID)
	require.NoError(t, sales.Validate(rec))
}

func TestBuildRecord_ExplicitTotal(t *testing.T) {
	rec, err := buildRecord(&SaleOptions{Total: 25, PaymentMethod: "cash"}, "user-1", "biz-1", time.Now())
	require.NoError(t, err)
	require.Equal(t, 25.0, rec.Total)
	require.Empty(t, rec.Items)
}

// execute runs one posclient invocation against the configured environment.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_LoginSaleStatus(t *testing.T) {
	backend, err := server.New([]byte("cli-test-key"), server.WithAccount(server.Account{
		Identifier: "cashier",
		Secret:     "secret",
		UserID:     "user-1",
		Name:       "Sam",
		Tenant:     tenants.Tenant{ID: "tenant-1"},
		Business:   tenants.Business{ID: "biz-1", TenantID: "tenant-1"},
	}))
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	defer srv.Close()

	t.Setenv("ENV", "TEST")
	t.Setenv("POS_API_BASE_URL", srv.URL+server.APIPrefix)
	t.Setenv("POS_DATA_FOLDER", t.TempDir())
	t.Setenv("POS_REQUEST_TIMEOUT", "2s")

	_, err = execute(t, "sale", "--total", "5")
	require.Error(t, err, "recording requires a session")

	out, err := execute(t, "login", "--identifier", "cashier", "--secret", "secret", "--format", "json")
	require.NoError(t, err)
	var sess sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &sess))
	require.Equal(t, "authenticated", sess.State)
	require.Equal(t, "biz-1", sess.BusinessID)

	_, err = execute(t, "sale", "--total", "12.50", "--offline")
	require.NoError(t, err)

	out, err = execute(t, "status", "--format", "json")
	require.NoError(t, err)
	var status statusView
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Equal(t, 1, status.Pending)
	require.Len(t, status.Entries, 1)
	require.Zero(t, backend.Calls(server.RouteSales))

	out, err = execute(t, "sync", "--format", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"synced": 1`)
	require.Len(t, backend.Sales(), 1)

	out, err = execute(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "pending 0, failed 0")

	_, err = execute(t, "logout")
	require.NoError(t, err)
	out, err = execute(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "anonymous")
}
