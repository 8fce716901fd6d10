package config

import "time"

type SessionConfig interface {
	GetRefreshTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshTimeout bounds the shared refresh call, independent of any single caller's context
func (Session) GetRefreshTimeout() time.Duration {
	return GetDurationEnv("POS_REFRESH_TIMEOUT", 10*time.Second)
}
