package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for the failure categories the tool layer reports.
// Backend adapters classify native driver errors into these with
// classifyError-style helpers; anything unclassified stays a plain
// driver error and its message passes through unmodified.
var (
	// ErrNotConnected is returned when an operation requires an active
	// connection and none exists.
	ErrNotConnected = errors.New("no active database connection")

	// ErrInvalidConfig is returned when a connection config is missing
	// required fields or holds contradictory values.
	ErrInvalidConfig = errors.New("invalid connection configuration")

	// ErrConnectionFailed is returned when a connection attempt fails for a
	// reason that is neither authentication nor network related.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrAuthenticationFailed is returned when the backend rejects the
	// supplied credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNetworkUnreachable is returned when the backend host cannot be
	// reached at all.
	ErrNetworkUnreachable = errors.New("database server unreachable")

	// ErrBackendUnavailable is returned when a backend's native driver or
	// managed runtime is not present on this host.
	ErrBackendUnavailable = errors.New("backend driver unavailable")

	// ErrQueryTimeout is returned when statement execution exceeds its
	// timeout window.
	ErrQueryTimeout = errors.New("query timed out")

	// ErrTableNotFound is returned when a describe targets a relation that
	// does not exist in the addressed schema.
	ErrTableNotFound = errors.New("table not found")
)

// BackendError wraps a native driver error with backend context and its
// classification. Kind is one of the sentinels above, or nil when the native
// error did not match any category.
type BackendError struct {
	Backend BackendType
	Op      string
	Kind    error
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Kind != nil && e.Cause != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, e.Kind, e.Cause)
	}
	if e.Kind != nil {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is reports classification matches so errors.Is(err, ErrAuthenticationFailed)
// works without callers unpacking the struct.
func (e *BackendError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return false
}

func backendErr(backend BackendType, op string, kind, cause error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Kind: kind, Cause: cause}
}

// isNetworkError recognizes dial and transport failures across drivers.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "network is unreachable") ||
		strings.Contains(s, "i/o timeout")
}

// ErrorKind maps an error to the stable kind string the tool surface reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrAuthenticationFailed):
		return "authentication_error"
	case errors.Is(err, ErrNetworkUnreachable):
		return "network_error"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrQueryTimeout):
		return "query_timeout"
	case errors.Is(err, ErrTableNotFound):
		return "table_not_found"
	case errors.Is(err, ErrConnectionFailed):
		return "connection_error"
	default:
		return "driver_error"
	}
}

// Suggestions returns the remediation hints for a classified error. Unknown
// driver errors get no suggestions; their message speaks for itself.
func Suggestions(err error, backend BackendType) []string {
	switch {
	case errors.Is(err, ErrNotConnected):
		return []string{"connect to a database first using connect_database"}
	case errors.Is(err, ErrInvalidConfig):
		return []string{"check that all required connection fields are set for this database type"}
	case errors.Is(err, ErrAuthenticationFailed):
		return []string{
			"verify the username and password",
			"check that the user is allowed to connect from this host",
		}
	case errors.Is(err, ErrNetworkUnreachable):
		return []string{
			"check that the database server is running",
			"verify the host and port are correct",
			"check network connectivity and firewall rules",
		}
	case errors.Is(err, ErrBackendUnavailable):
		if backend == BackendDM8 {
			return []string{
				"set DM_JDBC_DRIVER to the full path of DmJdbcDriver18.jar",
				"or set DM_HOME so the driver is found under drivers/jdbc",
				"install a Java runtime and set JAVA_HOME or add java to PATH",
			}
		}
		return []string{"install the native driver for this database type"}
	case errors.Is(err, ErrQueryTimeout):
		return []string{
			"increase the timeout parameter",
			"narrow the query so it scans less data",
		}
	case errors.Is(err, ErrTableNotFound):
		return []string{
			"check the table name and schema",
			"use list_tables to see the available tables",
		}
	case errors.Is(err, ErrConnectionFailed):
		if backend == BackendSQLite {
			return []string{
				"check that the database file path exists and is absolute",
				"check read and write permissions on the file",
			}
		}
		return []string{
			"check that the database server is running",
			"verify the host, port and database name",
			"verify the username and password",
		}
	default:
		return nil
	}
}
