package database

import (
	"fmt"
	"path/filepath"
)

// ConnectionConfig holds everything needed to open a connection to one
// backend. Password is write-only: it never appears in String output,
// logs or status snapshots.
type ConnectionConfig struct {
	Type     BackendType
	Host     string
	Port     int // 0 means the backend's default port, resolved at dial time
	Username string
	Password string
	Database string // database name, or file path for sqlite
}

// Validate checks required fields per backend and fills defaults for the
// optional ones. The port is deliberately left untouched: a zero port is
// stored as supplied and only resolved when the adapter dials.
func (c *ConnectionConfig) Validate() error {
	t, err := ParseBackendType(string(c.Type))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Type = t
	if c.Database == "" {
		return fmt.Errorf("%w: database name is required", ErrInvalidConfig)
	}
	if c.Port < 0 {
		return fmt.Errorf("%w: port must not be negative", ErrInvalidConfig)
	}

	if c.Type == BackendSQLite {
		if c.Database != ":memory:" && !filepath.IsAbs(c.Database) {
			return fmt.Errorf("%w: sqlite database path must be absolute, got %q", ErrInvalidConfig, c.Database)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Username == "" {
		return fmt.Errorf("%w: username is required for %s", ErrInvalidConfig, c.Type)
	}
	return nil
}

// String renders the config for logs without the password.
func (c ConnectionConfig) String() string {
	if c.Type == BackendSQLite {
		return fmt.Sprintf("sqlite(%s)", c.Database)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Type, c.Username, c.Host, c.Port, c.Database)
}
