package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresAdapter struct{}

func (postgresAdapter) Type() BackendType { return BackendPostgres }

func (postgresAdapter) DefaultPort() int { return 5432 }

func (postgresAdapter) QuoteIdentifier(name string) string { return quoteANSI(name) }

// dsn resolves a zero port to the backend default at dial time; the stored
// config keeps the supplied value.
func (a postgresAdapter) dsn(cfg ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = a.DefaultPort()
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=prefer&connect_timeout=10",
		url.QueryEscape(cfg.Username), url.QueryEscape(cfg.Password), cfg.Host, port, cfg.Database)
}

func (a postgresAdapter) Open(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Conn, error) {
	db, err := sql.Open("pgx", a.dsn(cfg))
	if err != nil {
		return nil, backendErr(BackendPostgres, "open", ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	info := ServerInfo{}
	if err := db.QueryRowContext(ctx, "SELECT version(), current_user, current_database()").
		Scan(&info.Version, &info.User, &info.Database); err != nil {
		db.Close()
		return nil, classifyPostgresError(err)
	}

	log.Debug("database: postgres connected", "host", cfg.Host, "port", cfg.Port, "version", info.Version)
	return &postgresConn{db: db, info: info}, nil
}

// classifyPostgresError maps SQLSTATE classes into the package's failure
// kinds: class 28 is authorization, 3D000 is an unknown database.
func classifyPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "28") {
			return backendErr(BackendPostgres, "open", ErrAuthenticationFailed, err)
		}
		return backendErr(BackendPostgres, "open", ErrConnectionFailed, err)
	}
	if isNetworkError(err) {
		return backendErr(BackendPostgres, "open", ErrNetworkUnreachable, err)
	}
	return backendErr(BackendPostgres, "open", ErrConnectionFailed, err)
}

type postgresConn struct {
	db   *sql.DB
	info ServerInfo
}

func (c *postgresConn) ServerInfo() ServerInfo { return c.info }

func (c *postgresConn) Close() error { return c.db.Close() }

func (c *postgresConn) Execute(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	return runStatement(ctx, c.db, BackendPostgres, stmt, maxRows)
}

// ListRelations reads information_schema with a pg_class join for the
// planner's row estimate. reltuples is -1 until a relation is analyzed;
// negative estimates are dropped rather than reported.
func (c *postgresConn) ListRelations(ctx context.Context, schema string) ([]TableInfo, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.table_name, t.table_type, c.reltuples::BIGINT
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_schema = $1
		ORDER BY t.table_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	tables := make([]TableInfo, 0)
	for rows.Next() {
		var (
			name, tableType string
			reltuples       sql.NullInt64
		)
		if err := rows.Scan(&name, &tableType, &reltuples); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		t := TableInfo{Name: name, Kind: relationKind(tableType), Schema: schema}
		if reltuples.Valid && reltuples.Int64 >= 0 {
			t.EstimatedRows = &reltuples.Int64
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relations: %w", err)
	}
	return tables, nil
}

func (c *postgresConn) DescribeRelation(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
		       COALESCE(pk.is_pk, FALSE)
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name, TRUE AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON kcu.constraint_name = tc.constraint_name
			 AND kcu.table_schema = tc.table_schema
			 AND kcu.table_name = tc.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = $1 AND tc.table_name = $2
		) pk ON pk.column_name = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	defer rows.Close()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			name, dataType, isNullable string
			dflt                       sql.NullString
			isPK                       bool
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &dflt, &isPK); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := ColumnInfo{
			Name:       name,
			Type:       mapNativeType(dataType),
			NativeType: dataType,
			Nullable:   isNullable == "YES",
			PrimaryKey: isPK,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return columns, nil
}
