// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	ClientID     string
	OpencodeDirs []string
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional: GHSWITCH_LISTEN_ADDR (127.0.0.1:8080),
// GHSWITCH_DB_PATH (a providers.db under the user config dir),
// GHSWITCH_CLIENT_ID (default OAuth app client id used when a link request
// omits one), and GHSWITCH_OPENCODE_DIRS (comma-separated override of the
// opencode candidate directories, empty meaning platform defaults).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("GHSWITCH_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := os.Getenv("GHSWITCH_DB_PATH")
	if dbPath == "" {
		defaultPath, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dbPath = defaultPath
	}

	var opencodeDirs []string
	if v, ok := os.LookupEnv("GHSWITCH_OPENCODE_DIRS"); ok && v != "" {
		for _, dir := range strings.Split(v, ",") {
			dir = strings.TrimSpace(dir)
			if dir != "" {
				opencodeDirs = append(opencodeDirs, dir)
			}
		}
	}

	return &Config{
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		ClientID:     os.Getenv("GHSWITCH_CLIENT_ID"),
		OpencodeDirs: opencodeDirs,
	}, nil
}

// DefaultDBPath returns the database location under the user's config
// directory, falling back to a dot directory in the home directory when the
// platform reports none.
func DefaultDBPath() (string, error) {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "ghswitch", "providers.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no usable data directory: %w", err)
	}
	return filepath.Join(home, ".ghswitch", "providers.db"), nil
}
