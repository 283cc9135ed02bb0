package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatabase_ConnectionConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() ConnectionConfig {
		return ConnectionConfig{
			Type:     BackendMySQL,
			Host:     "db.example.com",
			Port:     3306,
			Username: "app",
			Password: "secret",
			Database: "orders",
		}
	}

	tests := []struct {
		name    string
		modify  func(*ConnectionConfig)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(c *ConnectionConfig) {},
		},
		{
			name:    "unsupported type",
			modify:  func(c *ConnectionConfig) { c.Type = "oracle" },
			wantErr: true,
		},
		{
			name:   "postgresql alias",
			modify: func(c *ConnectionConfig) { c.Type = "postgresql" },
		},
		{
			name:    "missing database",
			modify:  func(c *ConnectionConfig) { c.Database = "" },
			wantErr: true,
		},
		{
			name:    "negative port",
			modify:  func(c *ConnectionConfig) { c.Port = -1 },
			wantErr: true,
		},
		{
			name:    "missing username",
			modify:  func(c *ConnectionConfig) { c.Username = "" },
			wantErr: true,
		},
		{
			name:   "missing host gets default",
			modify: func(c *ConnectionConfig) { c.Host = "" },
		},
		{
			name: "sqlite relative path",
			modify: func(c *ConnectionConfig) {
				c.Type = BackendSQLite
				c.Database = "relative/path.db"
			},
			wantErr: true,
		},
		{
			name: "sqlite absolute path",
			modify: func(c *ConnectionConfig) {
				c.Type = BackendSQLite
				c.Database = "/var/data/app.db"
				c.Username = ""
				c.Host = ""
			},
		},
		{
			name: "sqlite memory",
			modify: func(c *ConnectionConfig) {
				c.Type = BackendSQLite
				c.Database = ":memory:"
				c.Username = ""
				c.Host = ""
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// A zero port survives validation untouched: it is resolved at dial time,
// never at config-storage time.
func TestDatabase_ConnectionConfig_Validate_KeepsZeroPort(t *testing.T) {
	t.Parallel()

	cfg := ConnectionConfig{
		Type:     BackendMySQL,
		Host:     "db.example.com",
		Port:     0,
		Username: "app",
		Password: "secret",
		Database: "orders",
	}
	require.NoError(t, cfg.Validate())
	require.Equal(t, 0, cfg.Port)
}

func TestDatabase_ConnectionConfig_String_OmitsPassword(t *testing.T) {
	t.Parallel()

	cfg := ConnectionConfig{
		Type:     BackendPostgres,
		Host:     "db.example.com",
		Port:     5432,
		Username: "app",
		Password: "hunter2",
		Database: "orders",
	}
	require.NotContains(t, cfg.String(), "hunter2")

	sqliteCfg := ConnectionConfig{Type: BackendSQLite, Database: "/var/data/app.db", Password: "hunter2"}
	require.NotContains(t, sqliteCfg.String(), "hunter2")
}

func TestDatabase_ParseBackendType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    BackendType
		wantErr bool
	}{
		{in: "mysql", want: BackendMySQL},
		{in: "MySQL", want: BackendMySQL},
		{in: "postgres", want: BackendPostgres},
		{in: "postgresql", want: BackendPostgres},
		{in: "mssql", want: BackendMSSQL},
		{in: "sqlserver", want: BackendMSSQL},
		{in: "dm8", want: BackendDM8},
		{in: "dameng", want: BackendDM8},
		{in: "sqlite", want: BackendSQLite},
		{in: " sqlite ", want: BackendSQLite},
		{in: "oracle", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseBackendType(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
		} else {
			require.NoError(t, err, "input %q", tt.in)
			require.Equal(t, tt.want, got)
		}
	}
}
