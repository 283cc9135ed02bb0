package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	dmDriverJarName = "DmJdbcDriver18.jar"
	dmBridgeJarName = "sqlbridge.jar"
	bridgeMainClass = "sqlbridge.Main"
)

// dm8Adapter reaches the Dameng server through a JDBC bridge subprocess,
// since no native Go driver exists for it. Opening a connection requires the
// vendor's JDBC driver jar and a Java runtime on this host; the absence of
// either is a backend-unavailable condition, not a connection failure.
type dm8Adapter struct{}

func (dm8Adapter) Type() BackendType { return BackendDM8 }

func (dm8Adapter) DefaultPort() int { return 5236 }

func (dm8Adapter) QuoteIdentifier(name string) string { return quoteANSI(name) }

func (a dm8Adapter) Open(ctx context.Context, log *slog.Logger, cfg ConnectionConfig) (Conn, error) {
	javaPath, err := locateJava()
	if err != nil {
		return nil, backendErr(BackendDM8, "open", ErrBackendUnavailable, err)
	}
	driverJar, err := locateDriverJar()
	if err != nil {
		return nil, backendErr(BackendDM8, "open", ErrBackendUnavailable, err)
	}
	bridgeJar, err := locateBridgeJar(driverJar)
	if err != nil {
		return nil, backendErr(BackendDM8, "open", ErrBackendUnavailable, err)
	}

	bridge, err := startDM8Bridge(log, javaPath, driverJar, bridgeJar)
	if err != nil {
		return nil, backendErr(BackendDM8, "open", ErrBackendUnavailable, err)
	}

	port := cfg.Port
	if port == 0 {
		port = a.DefaultPort()
	}
	url := fmt.Sprintf("jdbc:dm://%s:%d/%s", cfg.Host, port, cfg.Database)

	resp, err := bridge.call(ctx, bridgeRequest{
		Op:       "connect",
		URL:      url,
		User:     cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		bridge.Close()
		return nil, backendErr(BackendDM8, "open", ErrNetworkUnreachable, err)
	}
	if !resp.OK {
		bridge.Close()
		return nil, classifyDM8Error(resp.Error)
	}

	info := ServerInfo{Version: resp.Version, User: resp.User, Database: cfg.Database}
	log.Debug("database: dm8 connected", "host", cfg.Host, "port", port, "version", info.Version)
	return &dm8Conn{bridge: bridge, info: info, schema: strings.ToUpper(cfg.Username)}, nil
}

// classifyDM8Error sorts a bridge-reported connect failure by its message.
// JDBC exception text is all the bridge can pass through.
func classifyDM8Error(msg string) error {
	lower := strings.ToLower(msg)
	cause := fmt.Errorf("%s", msg)
	switch {
	case strings.Contains(lower, "password") || strings.Contains(lower, "login") ||
		strings.Contains(lower, "username"):
		return backendErr(BackendDM8, "open", ErrAuthenticationFailed, cause)
	case strings.Contains(lower, "refused") || strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "unreachable") || strings.Contains(lower, "unknown host"):
		return backendErr(BackendDM8, "open", ErrNetworkUnreachable, cause)
	default:
		return backendErr(BackendDM8, "open", ErrConnectionFailed, cause)
	}
}

func locateJava() (string, error) {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		p := filepath.Join(home, "bin", "java")
		if fileExists(p) {
			return p, nil
		}
		return "", fmt.Errorf("JAVA_HOME is set but %s does not exist", p)
	}
	p, err := exec.LookPath("java")
	if err != nil {
		return "", fmt.Errorf("no java runtime found: set JAVA_HOME or add java to PATH")
	}
	return p, nil
}

// locateDriverJar resolves the vendor driver in the order the deployment
// docs promise: explicit env var, DM installation, bundled assets, then the
// conventional install locations.
func locateDriverJar() (string, error) {
	if p := os.Getenv("DM_JDBC_DRIVER"); p != "" {
		if fileExists(p) {
			return p, nil
		}
		return "", fmt.Errorf("DM_JDBC_DRIVER is set but %s does not exist", p)
	}

	var candidates []string
	if home := os.Getenv("DM_HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, "drivers", "jdbc", dmDriverJarName))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "assets", dmDriverJarName))
	}
	candidates = append(candidates, filepath.Join("/opt/dmdbms/drivers/jdbc", dmDriverJarName))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "dmdbms", "drivers", "jdbc", dmDriverJarName))
	}

	for _, p := range candidates {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found (searched %s)", dmDriverJarName, strings.Join(candidates, ", "))
}

func locateBridgeJar(driverJar string) (string, error) {
	if p := os.Getenv("DM_BRIDGE_JAR"); p != "" {
		if fileExists(p) {
			return p, nil
		}
		return "", fmt.Errorf("DM_BRIDGE_JAR is set but %s does not exist", p)
	}

	candidates := []string{filepath.Join(filepath.Dir(driverJar), dmBridgeJarName)}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "assets", dmBridgeJarName))
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found (searched %s)", dmBridgeJarName, strings.Join(candidates, ", "))
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

type dm8Conn struct {
	bridge *dm8Bridge
	info   ServerInfo
	schema string // the connected user's own schema, upper case
}

func (c *dm8Conn) ServerInfo() ServerInfo { return c.info }

func (c *dm8Conn) Close() error { return c.bridge.Close() }

func (c *dm8Conn) Execute(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	op := "exec"
	if returnsRows(BackendDM8, stmt) {
		op = "query"
	}
	resp, err := c.bridge.call(ctx, bridgeRequest{Op: op, SQL: stmt})
	if err != nil {
		return nil, fmt.Errorf("bridge call failed: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("failed to execute statement: %s", resp.Error)
	}
	return bridgeResult(resp, maxRows), nil
}

// bridgeResult converts one bridge frame into a QueryResult, applying the
// row cap the bridge itself does not know about.
func bridgeResult(resp bridgeResponse, maxRows int) *QueryResult {
	columns := resp.Columns
	if columns == nil {
		columns = []string{}
	}
	rows := make([]map[string]any, 0, len(resp.Rows))
	truncated := false
	for _, raw := range resp.Rows {
		if maxRows > 0 && len(rows) >= maxRows {
			truncated = true
			break
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			var dbType string
			if i < len(resp.Types) {
				dbType = resp.Types[i]
			}
			if i < len(raw) {
				row[col] = normalizeValue(raw[i], dbType)
			}
		}
		rows = append(rows, row)
	}
	return &QueryResult{
		Columns:      columns,
		Rows:         rows,
		RowsAffected: resp.RowsAffected,
		Truncated:    truncated,
	}
}

// queryBridge runs one metadata query and fails on a non-OK frame.
func (c *dm8Conn) queryBridge(ctx context.Context, stmt string) (*QueryResult, error) {
	resp, err := c.bridge.call(ctx, bridgeRequest{Op: "query", SQL: stmt})
	if err != nil {
		return nil, fmt.Errorf("bridge call failed: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("metadata query failed: %s", resp.Error)
	}
	return bridgeResult(resp, 0), nil
}

// ListRelations uses the user's own catalog views, or the ALL_ views when an
// explicit schema is addressed. Dameng follows the Oracle convention of
// upper-cased identifiers in the catalog.
func (c *dm8Conn) ListRelations(ctx context.Context, schema string) ([]TableInfo, error) {
	var stmt string
	if schema == "" {
		stmt = `SELECT TABLE_NAME AS NAME, 'table' AS KIND FROM USER_TABLES
			UNION ALL
			SELECT VIEW_NAME AS NAME, 'view' AS KIND FROM USER_VIEWS
			ORDER BY NAME`
	} else {
		owner := sqlStringLiteral(strings.ToUpper(schema))
		stmt = fmt.Sprintf(`SELECT TABLE_NAME AS NAME, 'table' AS KIND FROM ALL_TABLES WHERE OWNER = %s
			UNION ALL
			SELECT VIEW_NAME AS NAME, 'view' AS KIND FROM ALL_VIEWS WHERE OWNER = %s
			ORDER BY NAME`, owner, owner)
	}

	res, err := c.queryBridge(ctx, stmt)
	if err != nil {
		return nil, err
	}
	tables := make([]TableInfo, 0, len(res.Rows))
	for _, row := range res.Rows {
		name, _ := row["NAME"].(string)
		kind, _ := row["KIND"].(string)
		if name == "" {
			continue
		}
		tables = append(tables, TableInfo{Name: name, Kind: kind, Schema: schema})
	}
	return tables, nil
}

func (c *dm8Conn) DescribeRelation(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	tableName := sqlStringLiteral(strings.ToUpper(table))

	var colStmt, pkStmt string
	if schema == "" {
		colStmt = fmt.Sprintf(`SELECT COLUMN_NAME, DATA_TYPE, NULLABLE, DATA_DEFAULT
			FROM USER_TAB_COLUMNS WHERE TABLE_NAME = %s ORDER BY COLUMN_ID`, tableName)
		pkStmt = fmt.Sprintf(`SELECT cc.COLUMN_NAME
			FROM USER_CONSTRAINTS uc
			JOIN USER_CONS_COLUMNS cc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
			WHERE uc.CONSTRAINT_TYPE = 'P' AND uc.TABLE_NAME = %s`, tableName)
	} else {
		owner := sqlStringLiteral(strings.ToUpper(schema))
		colStmt = fmt.Sprintf(`SELECT COLUMN_NAME, DATA_TYPE, NULLABLE, DATA_DEFAULT
			FROM ALL_TAB_COLUMNS WHERE OWNER = %s AND TABLE_NAME = %s ORDER BY COLUMN_ID`, owner, tableName)
		pkStmt = fmt.Sprintf(`SELECT cc.COLUMN_NAME
			FROM ALL_CONSTRAINTS uc
			JOIN ALL_CONS_COLUMNS cc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME AND cc.OWNER = uc.OWNER
			WHERE uc.CONSTRAINT_TYPE = 'P' AND uc.OWNER = %s AND uc.TABLE_NAME = %s`, owner, tableName)
	}

	colRes, err := c.queryBridge(ctx, colStmt)
	if err != nil {
		return nil, err
	}

	pkCols := map[string]bool{}
	if pkRes, err := c.queryBridge(ctx, pkStmt); err == nil {
		for _, row := range pkRes.Rows {
			if name, ok := row["COLUMN_NAME"].(string); ok {
				pkCols[name] = true
			}
		}
	}

	columns := make([]ColumnInfo, 0, len(colRes.Rows))
	for _, row := range colRes.Rows {
		name, _ := row["COLUMN_NAME"].(string)
		if name == "" {
			continue
		}
		nativeType, _ := row["DATA_TYPE"].(string)
		nullable, _ := row["NULLABLE"].(string)
		col := ColumnInfo{
			Name:       name,
			Type:       mapNativeType(nativeType),
			NativeType: nativeType,
			Nullable:   nullable == "Y",
			PrimaryKey: pkCols[name],
		}
		if dflt, ok := row["DATA_DEFAULT"].(string); ok && dflt != "" {
			trimmed := strings.TrimSpace(dflt)
			col.Default = &trimmed
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// sqlStringLiteral quotes a value for interpolation into a bridge metadata
// query, doubling embedded single quotes.
func sqlStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
