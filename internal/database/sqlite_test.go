package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T, cfg ConnectionConfig) Conn {
	t.Helper()
	conn, err := sqliteAdapter{}.Open(t.Context(), testLogger(t), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, conn.Close()) })
	return conn
}

func TestDatabase_SQLite_OpenMissingFile(t *testing.T) {
	t.Parallel()

	cfg := ConnectionConfig{Type: BackendSQLite, Database: filepath.Join(t.TempDir(), "absent.db")}
	_, err := sqliteAdapter{}.Open(t.Context(), testLogger(t), cfg)
	require.ErrorIs(t, err, ErrConnectionFailed)
	require.Equal(t, "connection_error", ErrorKind(err))
}

func TestDatabase_SQLite_OpenInMemory(t *testing.T) {
	t.Parallel()

	conn := openTestSQLite(t, ConnectionConfig{Type: BackendSQLite, Database: ":memory:"})

	info := conn.ServerInfo()
	require.NotEmpty(t, info.Version)
	require.Nil(t, info.FileSizeBytes)
	require.NotNil(t, info.TableCount)
	require.Equal(t, 0, *info.TableCount)
}

func TestDatabase_SQLite_OpenFileReportsSize(t *testing.T) {
	t.Parallel()

	conn := openTestSQLite(t, testSQLiteConfig(t))
	info := conn.ServerInfo()
	require.NotNil(t, info.FileSizeBytes)
}

// Quoting is exercised against a live database: a table whose name embeds the
// quote character itself must survive listing, counting and describing.
func TestDatabase_SQLite_QuotedIdentifierRoundTrip(t *testing.T) {
	t.Parallel()

	conn := openTestSQLite(t, ConnectionConfig{Type: BackendSQLite, Database: ":memory:"})

	name := `odd "name"`
	_, err := conn.Execute(t.Context(), `CREATE TABLE `+quoteANSI(name)+` (id INTEGER)`, 0)
	require.NoError(t, err)
	_, err = conn.Execute(t.Context(), `INSERT INTO `+quoteANSI(name)+` VALUES (1)`, 0)
	require.NoError(t, err)

	tables, err := conn.ListRelations(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Equal(t, name, tables[0].Name)
	require.NotNil(t, tables[0].EstimatedRows)
	require.Equal(t, int64(1), *tables[0].EstimatedRows)

	columns, err := conn.DescribeRelation(t.Context(), name, "")
	require.NoError(t, err)
	require.Len(t, columns, 1)
	require.Equal(t, "id", columns[0].Name)
}

func TestDatabase_SQLite_ListRelationsIncludesViews(t *testing.T) {
	t.Parallel()

	conn := openTestSQLite(t, ConnectionConfig{Type: BackendSQLite, Database: ":memory:"})

	_, err := conn.Execute(t.Context(), `CREATE TABLE t (id INTEGER)`, 0)
	require.NoError(t, err)
	_, err = conn.Execute(t.Context(), `CREATE VIEW v AS SELECT * FROM t`, 0)
	require.NoError(t, err)

	tables, err := conn.ListRelations(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, tables, 2)

	kinds := map[string]string{}
	for _, tbl := range tables {
		kinds[tbl.Name] = tbl.Kind
	}
	require.Equal(t, RelationTable, kinds["t"])
	require.Equal(t, RelationView, kinds["v"])
}

func TestDatabase_SQLite_DescribeMissingRelation(t *testing.T) {
	t.Parallel()

	conn := openTestSQLite(t, ConnectionConfig{Type: BackendSQLite, Database: ":memory:"})

	columns, err := conn.DescribeRelation(t.Context(), "nope", "")
	require.NoError(t, err)
	require.Empty(t, columns)
}

func TestDatabase_SQLite_ExecuteNormalizesValues(t *testing.T) {
	t.Parallel()

	conn := openTestSQLite(t, ConnectionConfig{Type: BackendSQLite, Database: ":memory:"})

	_, err := conn.Execute(t.Context(),
		`CREATE TABLE vals (i INTEGER, r REAL, s TEXT, b BLOB, n TEXT)`, 0)
	require.NoError(t, err)
	_, err = conn.Execute(t.Context(),
		`INSERT INTO vals VALUES (42, 1.5, 'hello', x'6869', NULL)`, 0)
	require.NoError(t, err)

	res, err := conn.Execute(t.Context(), `SELECT i, r, s, b, n FROM vals`, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	require.Equal(t, int64(42), row["i"])
	require.Equal(t, 1.5, row["r"])
	require.Equal(t, "hello", row["s"])
	require.Equal(t, "hi", row["b"])
	require.Nil(t, row["n"])
}
