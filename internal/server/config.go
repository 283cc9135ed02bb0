package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
	defaultQueryTimeout      = 30 * time.Second
)

type Config struct {
	Logger *slog.Logger

	Manager *database.Manager

	Version           string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// QueryTimeout applies to execute_sql calls that do not pick a timeout.
	QueryTimeout time.Duration

	// AllowedTokens are the Bearer tokens accepted on the HTTP transport.
	// Empty means no authentication.
	AllowedTokens []string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Manager == nil {
		return fmt.Errorf("database manager is required")
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	return nil
}
