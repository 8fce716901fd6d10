package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// GetBaseURL returns the backend root all logical paths (/auth/login, /sales) are resolved against
func (API) GetBaseURL() string {
	return strings.TrimRight(GetEnv("POS_API_BASE_URL", "http://localhost:8080/api"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetDurationEnv("POS_REQUEST_TIMEOUT", 15*time.Second)
}
