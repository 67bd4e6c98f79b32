// Package config loads service configuration from defaults, an optional
// file and environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetString returns the environment value for key, or fallback when unset.
// A variable set to the empty string counts as set.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt parses key as a base-10 integer. Unparseable values are logged and
// replaced by fallback.
func GetInt(key string, fallback int) int {
	value, ok := lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		invalid(key, value, err)
		return fallback
	}
	return parsed
}

// GetBool parses key with strconv.ParseBool.
func GetBool(key string, fallback bool) bool {
	value, ok := lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		invalid(key, value, err)
		return fallback
	}
	return parsed
}

// GetSeconds reads a duration given either as whole seconds ("30") or in
// time.ParseDuration form ("1m30s").
func GetSeconds(key string, fallback time.Duration) time.Duration {
	value, ok := lookup(key)
	if !ok {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		invalid(key, value, err)
		return fallback
	}
	return parsed
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func invalid(key, value string, err error) {
	slog.Warn("invalid environment value", "key", key, "value", value, "error", err)
}
