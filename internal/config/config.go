package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds everything the portal client reads from the environment. The
// portal URL and nonce come from the embedding site; the shared backend
// credential never appears here.
type Config struct {
	// PortalURL is the embedding site's config proxy endpoint.
	PortalURL string
	// Nonce is the request-origin check value the proxy expects.
	Nonce string
	// StatePath is the local state file standing in for browser storage.
	StatePath string
	// StateKey is the passphrase sealing the session token at rest.
	StateKey string
	LogLevel string
}

// FromEnv reads configuration from PARISHPORT_* environment variables,
// applying the same defaults on every invocation.
func FromEnv() Config {
	cfg := Config{
		PortalURL: os.Getenv("PARISHPORT_PORTAL_URL"),
		Nonce:     os.Getenv("PARISHPORT_NONCE"),
		StatePath: os.Getenv("PARISHPORT_STATE_PATH"),
		StateKey:  os.Getenv("PARISHPORT_STATE_KEY"),
		LogLevel:  os.Getenv("PARISHPORT_LOG_LEVEL"),
	}
	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			cfg.StatePath = "parishport.db"
		} else {
			cfg.StatePath = filepath.Join(home, ".parishport", "parishport.db")
		}
	}
	if cfg.StateKey == "" {
		host, _ := os.Hostname()
		cfg.StateKey = "parishport:" + host
	}
	return cfg
}

// Validate checks the fields every remote operation depends on.
func (c Config) Validate() error {
	if c.PortalURL == "" {
		return fmt.Errorf("PARISHPORT_PORTAL_URL is required")
	}
	if c.Nonce == "" {
		return fmt.Errorf("PARISHPORT_NONCE is required")
	}
	return nil
}
