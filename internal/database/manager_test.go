package database

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testLogger(t)
	}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, m.Disconnect(t.Context()))
	})
	return m
}

// testSQLiteConfig creates an empty database file and returns a config
// addressing it.
func testSQLiteConfig(t *testing.T) ConnectionConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return ConnectionConfig{Type: BackendSQLite, Database: path}
}

func TestDatabase_Manager_Config_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewManager(ManagerConfig{})
	require.Error(t, err)

	m, err := NewManager(ManagerConfig{Logger: testLogger(t)})
	require.NoError(t, err)
	require.Equal(t, DefaultMaxRows, m.maxRows)
	require.NotNil(t, m.clock)
}

func TestDatabase_Manager_ExecuteWithoutConnect(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Execute(t.Context(), "SELECT 1", 0)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = m.ListTables(t.Context(), "", 0, 0)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = m.DescribeTable(t.Context(), "users", "")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDatabase_Manager_DisconnectIdempotent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	require.NoError(t, m.Disconnect(t.Context()))
	require.NoError(t, m.Disconnect(t.Context()))

	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(t.Context()))
	require.NoError(t, m.Disconnect(t.Context()))
	require.False(t, m.Status().Connected)
}

func TestDatabase_Manager_ConnectSQLite(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	cfg := testSQLiteConfig(t)
	cfg.Password = "should-never-appear"

	status, err := m.Connect(t.Context(), cfg)
	require.NoError(t, err)
	require.True(t, status.Connected)
	require.Equal(t, BackendSQLite, status.Type)
	require.Equal(t, cfg.Database, status.Database)
	require.NotEmpty(t, status.ServerVersion)

	// The snapshot never carries the password, in any field.
	raw, err := json.Marshal(status)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "should-never-appear")
	require.NotContains(t, string(raw), "password")
}

// The supplied port is reported verbatim in status; resolution to the
// backend default happens at dial time only (see the adapter DSN tests).
func TestDatabase_Manager_PortStoredVerbatim(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	cfg := testSQLiteConfig(t)
	cfg.Port = 7777

	status, err := m.Connect(t.Context(), cfg)
	require.NoError(t, err)
	require.Equal(t, 7777, status.Port)
	require.Equal(t, 7777, m.Status().Port)
}

func TestDatabase_Manager_ConnectInvalidConfig(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})

	_, err := m.Connect(t.Context(), ConnectionConfig{Type: BackendSQLite})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = m.Connect(t.Context(), ConnectionConfig{Type: "oracle", Database: "x"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	require.False(t, m.Status().Connected)
}

func TestDatabase_Manager_ConnectReplacesActive(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})

	first := testSQLiteConfig(t)
	_, err := m.Connect(t.Context(), first)
	require.NoError(t, err)

	second := testSQLiteConfig(t)
	status, err := m.Connect(t.Context(), second)
	require.NoError(t, err)
	require.Equal(t, second.Database, status.Database)
	require.Equal(t, second.Database, m.Status().Database)
}

// A failed connect leaves no active connection, never the previous one.
func TestDatabase_Manager_FailedConnectClearsActive(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	missing := ConnectionConfig{Type: BackendSQLite, Database: filepath.Join(t.TempDir(), "missing.db")}
	_, err = m.Connect(t.Context(), missing)
	require.ErrorIs(t, err, ErrConnectionFailed)
	require.False(t, m.Status().Connected)
}

func TestDatabase_Manager_Execute(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	_, err = m.Execute(t.Context(), `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, balance DECIMAL(10,2))`, 0)
	require.NoError(t, err)

	res, err := m.Execute(t.Context(), `INSERT INTO users (name, balance) VALUES ('ada', 12.50), ('bob', 99.99)`, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.RowsAffected)
	require.False(t, res.RiskFlag)

	res, err = m.Execute(t.Context(), `SELECT id, name FROM users ORDER BY id`, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 2)
	require.Equal(t, "ada", res.Rows[0]["name"])
	require.False(t, res.Truncated)

	_, err = m.Execute(t.Context(), "  ", 0)
	require.Error(t, err)
}

// Destructive statements still execute; the result carries the advisory
// flag and warning instead of being blocked.
func TestDatabase_Manager_ExecuteRiskFlagged(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	_, err = m.Execute(t.Context(), `CREATE TABLE users (id INTEGER)`, 0)
	require.NoError(t, err)

	res, err := m.Execute(t.Context(), `DROP TABLE users`, 0)
	require.NoError(t, err)
	require.True(t, res.RiskFlag)
	require.NotEmpty(t, res.Warning)

	// The table really is gone: flagging is disclosure, not prevention.
	list, err := m.ListTables(t.Context(), "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 0, list.Total)
}

func TestDatabase_Manager_ExecuteTruncatesAtMaxRows(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{MaxRows: 2})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	_, err = m.Execute(t.Context(), `CREATE TABLE n (v INTEGER)`, 0)
	require.NoError(t, err)
	_, err = m.Execute(t.Context(), `INSERT INTO n VALUES (1), (2), (3), (4)`, 0)
	require.NoError(t, err)

	res, err := m.Execute(t.Context(), `SELECT v FROM n`, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.True(t, res.Truncated)
}

func TestDatabase_Manager_ExecuteTimeout(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	_, err = m.Execute(t.Context(), `SELECT 1`, time.Nanosecond)
	require.ErrorIs(t, err, ErrQueryTimeout)
}

func TestDatabase_Manager_ListTables(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	for _, stmt := range []string{
		`CREATE TABLE alpha (id INTEGER)`,
		`CREATE TABLE beta (id INTEGER)`,
		`CREATE TABLE gamma (id INTEGER)`,
		`CREATE VIEW beta_view AS SELECT * FROM beta`,
	} {
		_, err := m.Execute(t.Context(), stmt, 0)
		require.NoError(t, err)
	}

	t.Run("full listing", func(t *testing.T) {
		list, err := m.ListTables(t.Context(), "", 0, 0)
		require.NoError(t, err)
		require.Equal(t, 4, list.Total)
		require.Len(t, list.Tables, 4)
		require.False(t, list.HasMore)
	})

	t.Run("paged", func(t *testing.T) {
		list, err := m.ListTables(t.Context(), "", 2, 0)
		require.NoError(t, err)
		require.Len(t, list.Tables, 2)
		require.Equal(t, 4, list.Total)
		require.True(t, list.HasMore)

		next, err := m.ListTables(t.Context(), "", 2, 2)
		require.NoError(t, err)
		require.Len(t, next.Tables, 2)
		require.False(t, next.HasMore)
	})

	t.Run("offset beyond the end", func(t *testing.T) {
		list, err := m.ListTables(t.Context(), "", 10, 100)
		require.NoError(t, err)
		require.Empty(t, list.Tables)
		require.Equal(t, 4, list.Total)
		require.False(t, list.HasMore)
	})

	t.Run("negative inputs clamped", func(t *testing.T) {
		list, err := m.ListTables(t.Context(), "", -5, -3)
		require.NoError(t, err)
		require.Len(t, list.Tables, 4)
		require.False(t, list.HasMore)
	})
}

func TestDatabase_Manager_DescribeTable(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, ManagerConfig{})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	_, err = m.Execute(t.Context(),
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, note TEXT DEFAULT 'none')`, 0)
	require.NoError(t, err)

	columns, err := m.DescribeTable(t.Context(), "users", "")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	require.Equal(t, "id", columns[0].Name)
	require.True(t, columns[0].PrimaryKey)
	require.Equal(t, "integer", columns[0].Type)

	require.Equal(t, "name", columns[1].Name)
	require.False(t, columns[1].Nullable)

	require.Equal(t, "note", columns[2].Name)
	require.NotNil(t, columns[2].Default)

	t.Run("missing table", func(t *testing.T) {
		_, err := m.DescribeTable(t.Context(), "nonexistent", "")
		require.ErrorIs(t, err, ErrTableNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := m.DescribeTable(t.Context(), "  ", "")
		require.Error(t, err)
	})
}

func TestDatabase_Manager_StatusUptime(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	m := newTestManager(t, ManagerConfig{Clock: clock})
	_, err := m.Connect(t.Context(), testSQLiteConfig(t))
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	status := m.Status()
	require.Equal(t, "1m30s", status.Uptime)
	require.NotEmpty(t, status.ConnectedAt)
}
