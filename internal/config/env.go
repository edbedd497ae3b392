package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup parses the environment variable key, falling back to def when it
// is unset, empty or unparsable.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return def
	}
	parsed, err := parse(value)
	if err != nil {
		return def
	}
	return parsed
}

// GetEnv returns the environment variable value or a default.
func GetEnv(key, defaultValue string) string {
	return lookup(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// GetIntEnv returns an integer environment variable or a default.
func GetIntEnv(key string, defaultValue int) int {
	return lookup(key, defaultValue, strconv.Atoi)
}

// GetFloatEnv returns a float environment variable or a default.
func GetFloatEnv(key string, defaultValue float64) float64 {
	return lookup(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetDurationEnv returns a duration environment variable or a default.
// Bare numbers are read as seconds, so "120" and "2m" are equivalent.
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	return lookup(key, defaultValue, parseDuration)
}

func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// GetSecretFile reads a secret from a mounted file (Docker secrets or a
// Kubernetes secret volume). Returns "" if unreadable.
func GetSecretFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
