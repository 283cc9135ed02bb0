package database

import (
	"fmt"
	"strings"
)

// BackendType identifies one of the supported database backends.
type BackendType string

const (
	BackendMySQL    BackendType = "mysql"
	BackendPostgres BackendType = "postgres"
	BackendMSSQL    BackendType = "mssql"
	BackendDM8      BackendType = "dm8"
	BackendSQLite   BackendType = "sqlite"
)

// ParseBackendType normalizes a user-supplied backend name, accepting the
// common aliases for each backend.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql":
		return BackendMySQL, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "mssql", "sqlserver":
		return BackendMSSQL, nil
	case "dm8", "dameng":
		return BackendDM8, nil
	case "sqlite":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %q (supported: mysql, postgres, mssql, dm8, sqlite)", s)
	}
}

const (
	RelationTable = "table"
	RelationView  = "view"
)

// TableInfo describes one relation in the connected database's catalog.
type TableInfo struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Schema        string `json:"schema,omitempty"`
	EstimatedRows *int64 `json:"estimated_rows,omitempty"`
}

// TableList is a page of the catalog listing.
type TableList struct {
	Tables  []TableInfo `json:"tables"`
	Total   int         `json:"total"`
	HasMore bool        `json:"has_more"`
}

// ColumnInfo describes one column of a relation. Type is the portable type
// tag produced by mapNativeType; NativeType is the backend's own name for it.
type ColumnInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NativeType string  `json:"native_type,omitempty"`
	Nullable   bool    `json:"nullable"`
	PrimaryKey bool    `json:"primary_key"`
	Default    *string `json:"default,omitempty"`
}

// QueryResult is the normalized outcome of a single statement execution.
// Rows hold portable scalars only: string, float64, int64, bool or nil.
type QueryResult struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
	Truncated    bool             `json:"truncated,omitempty"`
	RiskFlag     bool             `json:"risk_flag,omitempty"`
	Warning      string           `json:"warning,omitempty"`
}

// ServerInfo is the best-effort information captured during the connect
// liveness probe.
type ServerInfo struct {
	Version  string `json:"version,omitempty"`
	User     string `json:"user,omitempty"`
	Database string `json:"database,omitempty"`

	// TableCount and FileSizeBytes are set by the file-backed backend only.
	TableCount    *int   `json:"table_count,omitempty"`
	FileSizeBytes *int64 `json:"file_size_bytes,omitempty"`
}

// Status is a point-in-time snapshot of the manager's connection state.
// It never carries the password.
type Status struct {
	Connected     bool        `json:"connected"`
	Type          BackendType `json:"type,omitempty"`
	Host          string      `json:"host,omitempty"`
	Port          int         `json:"port,omitempty"`
	Database      string      `json:"database,omitempty"`
	Username      string      `json:"username,omitempty"`
	ServerVersion string      `json:"server_version,omitempty"`
	ConnectedAt   string      `json:"connected_at,omitempty"`
	Uptime        string      `json:"uptime,omitempty"`
}
