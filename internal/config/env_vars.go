package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "POS_LOG_LEVEL"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() zerolog.Level
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "POS Client")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(GetEnv(logLevelVar, "info"))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDurationEnv parses a Go duration ("30s", "5m"). Invalid or non-positive values fall back to the default.
func GetDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetIntEnv(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
