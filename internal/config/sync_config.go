package config

import "time"

type SyncConfig interface {
	GetSyncInterval() time.Duration
	GetSyncBackoffInitial() time.Duration
	GetSyncBackoffMax() time.Duration
	GetMetricsAddr() string
}

type Sync struct{}

var _ SyncConfig = Sync{}

func (Sync) GetSyncInterval() time.Duration {
	return GetDurationEnv("POS_SYNC_INTERVAL", 30*time.Second)
}

func (Sync) GetSyncBackoffInitial() time.Duration {
	return GetDurationEnv("POS_SYNC_BACKOFF_INITIAL", 2*time.Second)
}

func (Sync) GetSyncBackoffMax() time.Duration {
	return GetDurationEnv("POS_SYNC_BACKOFF_MAX", 5*time.Minute)
}

// GetMetricsAddr is the listen address for /metrics; empty disables the endpoint
func (Sync) GetMetricsAddr() string {
	return GetEnv("POS_METRICS_ADDR", "")
}
