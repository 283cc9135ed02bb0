// Package database mediates between the tool surface and a set of backend
// adapters. A Manager owns at most one live connection at a time; switching
// backends means closing the old connection before dialing the new one.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultMaxRows caps result sets so a runaway query cannot blow up a
	// tool response.
	DefaultMaxRows = 1000

	// DefaultQueryTimeout bounds statement execution when the caller does
	// not pick a timeout.
	DefaultQueryTimeout = 30 * time.Second

	defaultListLimit = 100
)

type ManagerConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// MaxRows overrides DefaultMaxRows when positive.
	MaxRows int
}

func (c *ManagerConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.MaxRows == 0 {
		c.MaxRows = DefaultMaxRows
	}
	return nil
}

// Manager tracks the process's single mutable connection across tool
// invocations. One mutex serializes connect, disconnect, execution and
// introspection; no operation sees a half-switched connection.
type Manager struct {
	log     *slog.Logger
	clock   clockwork.Clock
	maxRows int

	mu     sync.Mutex
	active *activeConnection
}

type activeConnection struct {
	cfg         ConnectionConfig
	adapter     Adapter
	conn        Conn
	connectedAt time.Time
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate manager config: %w", err)
	}
	return &Manager{
		log:     cfg.Logger,
		clock:   cfg.Clock,
		maxRows: cfg.MaxRows,
	}, nil
}

// Connect validates the config, tears down any existing connection and dials
// the new target. When the dial fails the manager is left with no active
// connection, never the previous one.
func (m *Manager) Connect(ctx context.Context, cfg ConnectionConfig) (Status, error) {
	if err := cfg.Validate(); err != nil {
		return Status{}, err
	}
	adapter, err := adapterFor(cfg.Type)
	if err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if err := m.active.conn.Close(); err != nil {
			m.log.Warn("manager: failed to close previous connection", "error", err)
		}
		m.active = nil
	}

	conn, err := adapter.Open(ctx, m.log, cfg)
	if err != nil {
		m.log.Warn("manager: connect failed", "target", cfg.String(), "error", err)
		return Status{}, err
	}

	m.active = &activeConnection{
		cfg:         cfg,
		adapter:     adapter,
		conn:        conn,
		connectedAt: m.clock.Now(),
	}
	m.log.Info("manager: connected", "target", cfg.String())
	return m.statusLocked(), nil
}

// Disconnect closes the active connection. With none active it is a no-op,
// not an error.
func (m *Manager) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	err := m.active.conn.Close()
	m.active = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	m.log.Info("manager: disconnected")
	return nil
}

// Status snapshots the connection state. The reported port is the
// configured value as supplied: a zero port stays zero here even though the
// adapter dialed the backend's default.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	if m.active == nil {
		return Status{Connected: false}
	}
	a := m.active
	return Status{
		Connected:     true,
		Type:          a.cfg.Type,
		Host:          a.cfg.Host,
		Port:          a.cfg.Port,
		Database:      a.cfg.Database,
		Username:      a.cfg.Username,
		ServerVersion: a.conn.ServerInfo().Version,
		ConnectedAt:   a.connectedAt.UTC().Format(time.RFC3339),
		Uptime:        m.clock.Since(a.connectedAt).Round(time.Second).String(),
	}
}

// Info returns what the connect probe learned about the active server.
func (m *Manager) Info() (ServerInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ServerInfo{}, false
	}
	return m.active.conn.ServerInfo(), true
}

// Execute runs one statement on the active connection within the timeout
// window. Statements matching the destructive denylist still execute; the
// result just carries the risk flag and warning.
func (m *Manager) Execute(ctx context.Context, stmt string, timeout time.Duration) (*QueryResult, error) {
	if strings.TrimSpace(stmt) == "" {
		return nil, errors.New("statement is empty")
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNotConnected
	}

	risky, warning := ClassifyRisk(stmt)
	if risky {
		m.log.Warn("manager: executing flagged statement", "warning", warning)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := m.active.conn.Execute(execCtx, stmt, m.maxRows)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, backendErr(m.active.cfg.Type, "execute", ErrQueryTimeout, err)
		}
		return nil, err
	}

	res.RiskFlag = risky
	res.Warning = warning
	if res.Truncated {
		m.log.Debug("manager: result truncated", "maxRows", m.maxRows)
	}
	return res, nil
}

// ListTables pages over the adapter's full catalog listing. Out-of-range
// inputs are clamped: a non-positive limit falls back to the default, a
// negative offset to zero, and an offset past the end yields an empty page.
func (m *Manager) ListTables(ctx context.Context, schema string, limit, offset int) (*TableList, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNotConnected
	}

	tables, err := m.active.conn.ListRelations(ctx, schema)
	if err != nil {
		return nil, err
	}

	total := len(tables)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &TableList{
		Tables:  tables[start:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// DescribeTable resolves one relation's column layout. A relation the
// adapter cannot see yields ErrTableNotFound rather than a raw driver error.
func (m *Manager) DescribeTable(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("table name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil, ErrNotConnected
	}

	columns, err := m.active.conn.DescribeRelation(ctx, table, schema)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, backendErr(m.active.cfg.Type, "describe", ErrTableNotFound,
			fmt.Errorf("relation %q not found in the addressed schema", table))
	}
	return columns, nil
}

// ActiveBackend reports the type of the active connection for error
// suggestion context, or empty when not connected.
func (m *Manager) ActiveBackend() BackendType {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.cfg.Type
}
