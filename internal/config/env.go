package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment overrides.
const (
	EnvPort     = "SMARTSPAR_PORT"
	EnvLogLevel = "SMARTSPAR_LOG_LEVEL"
	EnvDB       = "SMARTSPAR_DB"
	EnvConfig   = "SMARTSPAR_CONFIG"
)

// Env returns the value of key, or def if it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	cfg.Log.Level = Env(EnvLogLevel, cfg.Log.Level)
	cfg.History.Path = Env(EnvDB, cfg.History.Path)
	return nil
}
