package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// maxBinaryPreview bounds the rendered form of binary column values.
const maxBinaryPreview = 1024

// normalizeValue maps a scanned driver value to a portable scalar: string,
// float64, int64, bool or nil. The mapping is total; a value no case knows
// falls back to its fmt rendering rather than erroring.
func normalizeValue(v any, dbType string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		if isDecimalType(dbType) {
			if f, err := strconv.ParseFloat(string(x), 64); err == nil {
				return f
			}
		}
		if isBinaryType(dbType) {
			return previewBytes(x)
		}
		return strings.ToValidUTF8(string(x), string(utf8.RuneError))
	case string:
		if isDecimalType(dbType) {
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
		return x
	case bool:
		return x
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func isDecimalType(dbType string) bool {
	t := strings.ToUpper(dbType)
	return strings.Contains(t, "DECIMAL") ||
		strings.Contains(t, "NUMERIC") ||
		strings.Contains(t, "NUMBER") ||
		strings.Contains(t, "MONEY")
}

func isBinaryType(dbType string) bool {
	t := strings.ToUpper(dbType)
	return strings.Contains(t, "BLOB") ||
		strings.Contains(t, "BINARY") ||
		strings.Contains(t, "BYTEA") ||
		strings.Contains(t, "IMAGE") ||
		t == "RAW" || t == "LONG RAW"
}

// previewBytes renders binary data as replacement-decoded text, bounded so a
// large blob cannot blow up a tool response.
func previewBytes(b []byte) string {
	s := strings.ToValidUTF8(string(b), string(utf8.RuneError))
	if len(s) <= maxBinaryPreview {
		return s
	}
	cut := maxBinaryPreview
	for cut > 0 && !utf8.ValidString(s[:cut]) {
		cut--
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:cut], len(b))
}

var portableIntegerTypes = map[string]bool{
	"INT": true, "INTEGER": true, "BIGINT": true, "SMALLINT": true,
	"TINYINT": true, "MEDIUMINT": true, "INT2": true, "INT4": true,
	"INT8": true, "SERIAL": true, "BIGSERIAL": true, "SMALLSERIAL": true,
}

// mapNativeType reduces a backend's own column type name to the portable tag
// used in describe output. Unknown types come back lower-cased rather than
// failing, so a new backend type never breaks a describe.
func mapNativeType(native string) string {
	t := strings.ToUpper(strings.TrimSpace(native))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch {
	case portableIntegerTypes[t]:
		return "integer"
	case isDecimalType(t):
		return "decimal"
	case t == "FLOAT" || t == "DOUBLE" || t == "DOUBLE PRECISION" || t == "REAL" ||
		t == "FLOAT4" || t == "FLOAT8" || t == "BINARY_DOUBLE" || t == "BINARY_FLOAT":
		return "float"
	case t == "BOOL" || t == "BOOLEAN" || t == "BIT":
		return "boolean"
	case strings.Contains(t, "TIMESTAMP") || strings.Contains(t, "DATETIME"):
		return "datetime"
	case t == "DATE":
		return "date"
	case strings.HasPrefix(t, "TIME"):
		return "time"
	case t == "UUID" || t == "UNIQUEIDENTIFIER":
		return "uuid"
	case t == "JSON" || t == "JSONB":
		return "json"
	case isBinaryType(t):
		return "binary"
	case strings.HasPrefix(t, "VARCHAR") || strings.HasPrefix(t, "NVARCHAR") ||
		strings.HasPrefix(t, "CHAR") || strings.HasPrefix(t, "NCHAR") ||
		strings.Contains(t, "TEXT") || strings.Contains(t, "CLOB") || t == "STRING":
		return "string"
	default:
		return strings.ToLower(native)
	}
}
