package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Conn is one live connection to a backend. Implementations are not safe for
// concurrent use; the manager serializes all access.
type Conn interface {
	// Execute runs a single statement and normalizes its outcome. Result
	// rows are capped at maxRows (0 means uncapped) with Truncated set when
	// the cap cuts the set short.
	Execute(ctx context.Context, stmt string, maxRows int) (*QueryResult, error)

	// ListRelations returns every table and view visible in the addressed
	// schema, the backend's default schema when empty.
	ListRelations(ctx context.Context, schema string) ([]TableInfo, error)

	// DescribeRelation returns the column layout of one relation. A relation
	// that does not exist yields an empty slice, not an error.
	DescribeRelation(ctx context.Context, table, schema string) ([]ColumnInfo, error)

	// ServerInfo reports what the connect probe learned about the server.
	ServerInfo() ServerInfo

	Close() error
}

// Adapter opens connections for one backend type.
type Adapter interface {
	Type() BackendType
	DefaultPort() int

	// QuoteIdentifier escapes an identifier for interpolation into metadata
	// queries, doubling the dialect's quote character.
	QuoteIdentifier(name string) string

	// Open dials the backend, verifies liveness with a round-trip probe and
	// captures server info. Failures come back classified into the package's
	// sentinel error kinds.
	Open(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Conn, error)
}

// adapterFor selects the adapter for a backend. The set is closed: adding a
// backend means adding a case here, there is no dynamic registry.
func adapterFor(t BackendType) (Adapter, error) {
	switch t {
	case BackendMySQL:
		return mysqlAdapter{}, nil
	case BackendPostgres:
		return postgresAdapter{}, nil
	case BackendMSSQL:
		return mssqlAdapter{}, nil
	case BackendDM8:
		return dm8Adapter{}, nil
	case BackendSQLite:
		return sqliteAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported database type %q", ErrInvalidConfig, t)
	}
}

// quoteANSI doubles embedded double quotes, the escaping shared by the
// postgres, dm8 and sqlite dialects.
func quoteANSI(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
