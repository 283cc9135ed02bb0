package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
)

type mssqlAdapter struct{}

func (mssqlAdapter) Type() BackendType { return BackendMSSQL }

func (mssqlAdapter) DefaultPort() int { return 1433 }

func (mssqlAdapter) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// connString resolves a zero port to the backend default at dial time; the
// stored config keeps the supplied value.
func (a mssqlAdapter) connString(cfg ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = a.DefaultPort()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, port, cfg.Database, cfg.Username, cfg.Password)
	b.WriteString(";encrypt=disable;dial timeout=10")
	return b.String()
}

func (a mssqlAdapter) Open(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Conn, error) {
	db, err := sql.Open("sqlserver", a.connString(cfg))
	if err != nil {
		return nil, backendErr(BackendMSSQL, "open", ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	info := ServerInfo{}
	if err := db.QueryRowContext(ctx, "SELECT @@VERSION, SUSER_SNAME(), DB_NAME()").
		Scan(&info.Version, &info.User, &info.Database); err != nil {
		db.Close()
		return nil, classifyMSSQLError(err)
	}
	// @@VERSION is a multi-line banner; the first line is enough.
	if i := strings.IndexByte(info.Version, '\n'); i >= 0 {
		info.Version = strings.TrimSpace(info.Version[:i])
	}

	log.Debug("database: mssql connected", "host", cfg.Host, "port", cfg.Port, "version", info.Version)
	return &mssqlConn{db: db, info: info}, nil
}

// classifyMSSQLError maps driver errors into the package's failure kinds.
// 18456/18452 are login failures, 4060 is an unopenable database.
func classifyMSSQLError(err error) error {
	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case 18456, 18452:
			return backendErr(BackendMSSQL, "open", ErrAuthenticationFailed, err)
		}
		return backendErr(BackendMSSQL, "open", ErrConnectionFailed, err)
	}
	if isNetworkError(err) {
		return backendErr(BackendMSSQL, "open", ErrNetworkUnreachable, err)
	}
	return backendErr(BackendMSSQL, "open", ErrConnectionFailed, err)
}

type mssqlConn struct {
	db   *sql.DB
	info ServerInfo
}

func (c *mssqlConn) ServerInfo() ServerInfo { return c.info }

func (c *mssqlConn) Close() error { return c.db.Close() }

func (c *mssqlConn) Execute(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	return runStatement(ctx, c.db, BackendMSSQL, stmt, maxRows)
}

// ListRelations reads INFORMATION_SCHEMA with a sys.partitions join for row
// counts; heap and clustered-index partitions (index 0 and 1) carry them.
func (c *mssqlConn) ListRelations(ctx context.Context, schema string) ([]TableInfo, error) {
	if schema == "" {
		schema = "dbo"
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.TABLE_NAME, t.TABLE_TYPE, SUM(p.rows)
		FROM INFORMATION_SCHEMA.TABLES t
		LEFT JOIN sys.tables st
		  ON st.name = t.TABLE_NAME AND SCHEMA_NAME(st.schema_id) = t.TABLE_SCHEMA
		LEFT JOIN sys.partitions p
		  ON p.object_id = st.object_id AND p.index_id IN (0, 1)
		WHERE t.TABLE_SCHEMA = @p1
		GROUP BY t.TABLE_NAME, t.TABLE_TYPE
		ORDER BY t.TABLE_NAME`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	tables := make([]TableInfo, 0)
	for rows.Next() {
		var (
			name, tableType string
			rowCount        sql.NullInt64
		)
		if err := rows.Scan(&name, &tableType, &rowCount); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		t := TableInfo{Name: name, Kind: relationKind(tableType), Schema: schema}
		if rowCount.Valid {
			t.EstimatedRows = &rowCount.Int64
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relations: %w", err)
	}
	return tables, nil
}

func (c *mssqlConn) DescribeRelation(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	if schema == "" {
		schema = "dbo"
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE, c.COLUMN_DEFAULT,
		       CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			  ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			 AND kcu.TABLE_SCHEMA = tc.TABLE_SCHEMA
			 AND kcu.TABLE_NAME = tc.TABLE_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			  AND tc.TABLE_SCHEMA = @p1 AND tc.TABLE_NAME = @p2
		) pk ON pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	defer rows.Close()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			name, dataType, isNullable string
			dflt                       sql.NullString
			isPK                       int
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &dflt, &isPK); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := ColumnInfo{
			Name:       name,
			Type:       mapNativeType(dataType),
			NativeType: dataType,
			Nullable:   isNullable == "YES",
			PrimaryKey: isPK == 1,
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
