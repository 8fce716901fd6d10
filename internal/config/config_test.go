package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-pos-client/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("POS_API_BASE_URL", "")
	t.Setenv("POS_SYNC_INTERVAL", "")

	c := config.New()
	require.Equal(t, "http://localhost:8080/api", c.GetBaseURL())
	require.Equal(t, 30*time.Second, c.GetSyncInterval())
	require.Equal(t, 500, c.GetSyncedLedgerSize())
	require.Equal(t, "", c.GetMetricsAddr())
}

func TestConfig_Overrides(t *testing.T) {
	t.Setenv("POS_API_BASE_URL", "https://pos.example.com/api/")
	t.Setenv("POS_REQUEST_TIMEOUT", "3s")
	t.Setenv("POS_SYNCED_LEDGER_SIZE", "20")
	t.Setenv("POS_LOG_LEVEL", "debug")

	c := config.New()
	require.Equal(t, "https://pos.example.com/api", c.GetBaseURL())
	require.Equal(t, 3*time.Second, c.GetRequestTimeout())
	require.Equal(t, 20, c.GetSyncedLedgerSize())
	require.Equal(t, zerolog.DebugLevel, c.GetLogLevel())
}

func TestGetDurationEnv_Invalid(t *testing.T) {
	t.Setenv("POS_SYNC_BACKOFF_MAX", "soon")
	require.Equal(t, 5*time.Minute, config.New().GetSyncBackoffMax())

	t.Setenv("POS_SYNC_BACKOFF_MAX", "-1s")
	require.Equal(t, 5*time.Minute, config.New().GetSyncBackoffMax())
}
