// Package metrics holds the Prometheus collectors shared by the session, gateway and sync layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionRefreshes counts network refreshes by result (ok, expired, transient)
	SessionRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_session_refresh_total",
		Help: "Token refresh calls by result",
	}, []string{"result"})

	// GatewayRequests counts gateway calls by outcome (ok, retried, unauthorized, error)
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_gateway_requests_total",
		Help: "Gateway requests by outcome",
	}, []string{"outcome"})

	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_runs_total",
		Help: "Sync runs by result (drained, blocked, idle)",
	}, []string{"result"})

	SyncEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_entries_total",
		Help: "Queue entries processed by outcome (synced, duplicate, failed)",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_offline_queue_depth",
		Help: "Sales waiting for server confirmation",
	})

	SyncRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_run_duration_seconds",
		Help:    "Sync run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

// Outcome labels
const (
	ResultOK           = "ok"
	ResultExpired      = "expired"
	ResultTransient    = "transient"
	ResultRetried      = "retried"
	ResultUnauthorized = "unauthorized"
	ResultError        = "error"
	ResultDrained      = "drained"
	ResultBlocked      = "blocked"
	ResultIdle         = "idle"
	ResultSynced       = "synced"
	ResultDuplicate    = "duplicate"
	ResultFailed       = "failed"
)
