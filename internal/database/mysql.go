package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"
)

type mysqlAdapter struct{}

func (mysqlAdapter) Type() BackendType { return BackendMySQL }

func (mysqlAdapter) DefaultPort() int { return 3306 }

func (mysqlAdapter) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// dsn resolves a zero port to the backend default at dial time; the stored
// config keeps the supplied value.
func (a mysqlAdapter) dsn(cfg ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = a.DefaultPort()
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&timeout=10s",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)
}

func (a mysqlAdapter) Open(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Conn, error) {
	db, err := sql.Open("mysql", a.dsn(cfg))
	if err != nil {
		return nil, backendErr(BackendMySQL, "open", ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	info := ServerInfo{}
	if err := db.QueryRowContext(ctx, "SELECT VERSION(), CURRENT_USER(), DATABASE()").
		Scan(&info.Version, &info.User, &info.Database); err != nil {
		db.Close()
		return nil, classifyMySQLError(err)
	}

	log.Debug("database: mysql connected", "host", cfg.Host, "port", cfg.Port, "version", info.Version)
	return &mysqlConn{db: db, info: info}, nil
}

// classifyMySQLError maps driver errors into the package's failure kinds.
// Access-denied error numbers cover password and host-based rejections.
func classifyMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1698, 3118:
			return backendErr(BackendMySQL, "open", ErrAuthenticationFailed, err)
		}
		return backendErr(BackendMySQL, "open", ErrConnectionFailed, err)
	}
	if isNetworkError(err) {
		return backendErr(BackendMySQL, "open", ErrNetworkUnreachable, err)
	}
	return backendErr(BackendMySQL, "open", ErrConnectionFailed, err)
}

type mysqlConn struct {
	db   *sql.DB
	info ServerInfo
}

func (c *mysqlConn) ServerInfo() ServerInfo { return c.info }

func (c *mysqlConn) Close() error { return c.db.Close() }

func (c *mysqlConn) Execute(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	return runStatement(ctx, c.db, BackendMySQL, stmt, maxRows)
}

func (c *mysqlConn) ListRelations(ctx context.Context, schema string) ([]TableInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT TABLE_NAME, TABLE_TYPE, TABLE_ROWS, TABLE_SCHEMA
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		ORDER BY TABLE_NAME`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	tables := make([]TableInfo, 0)
	for rows.Next() {
		var (
			name, tableType, tableSchema string
			tableRows                    sql.NullInt64
		)
		if err := rows.Scan(&name, &tableType, &tableRows, &tableSchema); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		t := TableInfo{Name: name, Kind: relationKind(tableType), Schema: tableSchema}
		if tableRows.Valid {
			t.EstimatedRows = &tableRows.Int64
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relations: %w", err)
	}
	return tables, nil
}

func (c *mysqlConn) DescribeRelation(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe relation: %w", err)
	}
	defer rows.Close()

	columns := make([]ColumnInfo, 0)
	for rows.Next() {
		var (
			name, dataType, isNullable, columnKey string
			dflt                                  sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &columnKey, &dflt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col := ColumnInfo{
			Name:       name,
			Type:       mapNativeType(dataType),
			NativeType: dataType,
			Nullable:   isNullable == "YES",
			PrimaryKey: columnKey == "PRI",
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

// relationKind folds the SQL-standard TABLE_TYPE values into table or view.
func relationKind(tableType string) string {
	if strings.Contains(strings.ToUpper(tableType), "VIEW") {
		return RelationView
	}
	return RelationTable
}
