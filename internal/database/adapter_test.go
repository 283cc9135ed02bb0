package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// unquote re-parses a quoted identifier: strips the outer quote pair and
// collapses doubled quote characters back to one.
func unquote(t *testing.T, quoted string, open, close string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(quoted, open), "missing opening quote in %q", quoted)
	require.True(t, strings.HasSuffix(quoted, close), "missing closing quote in %q", quoted)
	inner := quoted[len(open) : len(quoted)-len(close)]
	return strings.ReplaceAll(inner, close+close, close)
}

// Round-trip law: for any identifier, quoting then re-parsing yields the
// original literal name.
func TestDatabase_QuoteIdentifier_RoundTrip(t *testing.T) {
	t.Parallel()

	names := []string{
		"users",
		"weird name",
		`evil"name`,
		`""`,
		`a""b`,
		"back`tick",
		"brack]et",
		`mixed"and` + "`both",
	}

	t.Run("ansi dialects", func(t *testing.T) {
		t.Parallel()
		for _, adapter := range []Adapter{postgresAdapter{}, sqliteAdapter{}, dm8Adapter{}} {
			for _, name := range names {
				quoted := adapter.QuoteIdentifier(name)
				require.Equal(t, name, unquote(t, quoted, `"`, `"`),
					"%s adapter, name %q", adapter.Type(), name)
			}
		}
	})

	t.Run("mysql backticks", func(t *testing.T) {
		t.Parallel()
		for _, name := range names {
			quoted := mysqlAdapter{}.QuoteIdentifier(name)
			require.Equal(t, name, unquote(t, quoted, "`", "`"), "name %q", name)
		}
	})

	t.Run("mssql brackets", func(t *testing.T) {
		t.Parallel()
		for _, name := range names {
			quoted := mssqlAdapter{}.QuoteIdentifier(name)
			require.True(t, strings.HasPrefix(quoted, "["), "missing opening bracket in %q", quoted)
			require.True(t, strings.HasSuffix(quoted, "]"), "missing closing bracket in %q", quoted)
			inner := quoted[1 : len(quoted)-1]
			require.Equal(t, name, strings.ReplaceAll(inner, "]]", "]"), "name %q", name)
		}
	})
}

func TestDatabase_AdapterFor(t *testing.T) {
	t.Parallel()

	for _, backend := range []BackendType{BackendMySQL, BackendPostgres, BackendMSSQL, BackendDM8, BackendSQLite} {
		adapter, err := adapterFor(backend)
		require.NoError(t, err)
		require.Equal(t, backend, adapter.Type())
	}

	_, err := adapterFor("oracle")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDatabase_Adapter_DefaultPorts(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3306, mysqlAdapter{}.DefaultPort())
	require.Equal(t, 5432, postgresAdapter{}.DefaultPort())
	require.Equal(t, 1433, mssqlAdapter{}.DefaultPort())
	require.Equal(t, 5236, dm8Adapter{}.DefaultPort())
	require.Equal(t, 0, sqliteAdapter{}.DefaultPort())
}

// The port policy fixture: a zero port dials the backend default while the
// config itself keeps the supplied zero (see the config validation test).
func TestDatabase_Adapter_DSN_PortZeroDialsDefault(t *testing.T) {
	t.Parallel()

	cfg := ConnectionConfig{
		Host:     "db.example.com",
		Port:     0,
		Username: "app",
		Password: "secret",
		Database: "orders",
	}

	require.Contains(t, mysqlAdapter{}.dsn(cfg), "db.example.com:3306")
	require.Contains(t, postgresAdapter{}.dsn(cfg), "db.example.com:5432")
	require.Contains(t, mssqlAdapter{}.connString(cfg), "port=1433")

	cfg.Port = 9999
	require.Contains(t, mysqlAdapter{}.dsn(cfg), "db.example.com:9999")
	require.Contains(t, postgresAdapter{}.dsn(cfg), "db.example.com:9999")
	require.Contains(t, mssqlAdapter{}.connString(cfg), "port=9999")
}
