package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"
)

// sqliteAdapter serves file-backed databases through the pure Go sqlite
// driver. Host, port and credentials are meaningless here: the database
// field carries the file path, with :memory: for a throwaway database.
type sqliteAdapter struct{}

func (sqliteAdapter) Type() BackendType { return BackendSQLite }

func (sqliteAdapter) DefaultPort() int { return 0 }

func (sqliteAdapter) QuoteIdentifier(name string) string { return quoteANSI(name) }

func (a sqliteAdapter) Open(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Conn, error) {
	var fileSize *int64
	if cfg.Database != ":memory:" {
		st, err := os.Stat(cfg.Database)
		if err != nil {
			return nil, backendErr(BackendSQLite, "open", ErrConnectionFailed, fmt.Errorf("database file not accessible: %w", err))
		}
		size := st.Size()
		fileSize = &size
	}

	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		return nil, backendErr(BackendSQLite, "open", ErrConnectionFailed, err)
	}
	// One live connection at a time, never a pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	info := ServerInfo{Database: cfg.Database, FileSizeBytes: fileSize}
	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&info.Version); err != nil {
		db.Close()
		return nil, backendErr(BackendSQLite, "open", ErrConnectionFailed, fmt.Errorf("liveness probe failed: %w", err))
	}
	var tableCount int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'`,
	).Scan(&tableCount); err == nil {
		info.TableCount = &tableCount
	}

	log.Debug("database: sqlite opened", "path", cfg.Database, "version", info.Version)
	return &sqliteConn{db: db, info: info}, nil
}

type sqliteConn struct {
	db   *sql.DB
	info ServerInfo
}

func (c *sqliteConn) ServerInfo() ServerInfo { return c.info }

func (c *sqliteConn) Close() error { return c.db.Close() }

func (c *sqliteConn) Execute(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	return runStatement(ctx, c.db, BackendSQLite, stmt, maxRows)
}

// ListRelations ignores the schema argument: a sqlite file has a single
// namespace. Row counts are exact COUNT(*) per relation, skipped on error.
func (c *sqliteConn) ListRelations(ctx context.Context, _ string) ([]TableInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	tables := make([]TableInfo, 0)
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Name, &t.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relations: %w", err)
	}

	for i := range tables {
		if tables[i].Kind != RelationTable {
			continue
		}
		var count int64
		countStmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteANSI(tables[i].Name))
		if err := c.db.QueryRowContext(ctx, countStmt).Scan(&count); err == nil {
			tables[i].EstimatedRows = &count
		}
	}
	return tables, nil
}

func (c *sqliteConn) DescribeRelation(ctx context.Context, table, _ string) ([]ColumnInfo, error) {
	stmt := fmt.Sprintf("PRAGMA table_info(%s)", quoteANSI(table))
	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	defer rows.Close()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := ColumnInfo{
			Name:       name,
			Type:       mapNativeType(ctype),
			NativeType: ctype,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
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
