// Package config provides configuration loading from environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// Backend names accepted by COOKER_BACKEND.
const (
	BackendKubernetes = "kubernetes"
	BackendDocker     = "docker"
)

// CookerConfig holds process-wide configuration, read once at start.
type CookerConfig struct {
	NumJobs        int
	Backend        string
	StatusInterval time.Duration // How often the supervisor checks for completion
	MetricsPort    string        // "0" disables the metrics/health server
	LogLevel       slog.Level
	InCluster      bool // Running inside the target cluster (park after completion)
}

// LoadCookerConfig loads cooker configuration from environment variables.
func LoadCookerConfig() *CookerConfig {
	return &CookerConfig{
		NumJobs:        GetIntEnv("COOKER_NUM_JOBS", 10),
		Backend:        strings.ToLower(GetEnv("COOKER_BACKEND", BackendKubernetes)),
		StatusInterval: GetDurationEnv("COOKER_STATUS_INTERVAL", 4*time.Second),
		MetricsPort:    GetEnv("METRICS_PORT", "9090"),
		LogLevel:       ParseLevel(GetEnv("COOKER_LOG_LEVEL", "info")),
		InCluster:      GetEnv("KUBERNETES_SERVICE_HOST", "") != "",
	}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
