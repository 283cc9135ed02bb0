package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
)

type ConnectInput struct {
	DBType   string `json:"dbtype" jsonschema:"Database type: mysql, postgres, mssql, dm8, sqlite"`
	Host     string `json:"host,omitempty" jsonschema:"Database host address, ignored for sqlite (default localhost)"`
	Port     int    `json:"port,omitempty" jsonschema:"Database port, the backend's default port is dialed when 0"`
	Username string `json:"username,omitempty" jsonschema:"Database username, ignored for sqlite"`
	Password string `json:"password,omitempty" jsonschema:"Database password, ignored for sqlite"`
	DBName   string `json:"dbname" jsonschema:"Database name, or absolute file path for sqlite"`
}

type ConnectOutput struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Connection *database.Status     `json:"connection,omitempty"`
	Server     *database.ServerInfo `json:"server,omitempty"`
	Failure
}

func (s *Server) registerConnectTool() error {
	req, err := jsonschema.For[ConnectInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create connect_database input schema: %w", err)
	}
	res, err := jsonschema.For[ConnectOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create connect_database output schema: %w", err)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "connect_database",
		Description: "Connect to a database, replacing any existing connection. " +
			"Supported types: mysql, postgres, mssql, dm8, sqlite. " +
			"For sqlite, dbname is the absolute file path (or :memory:). " +
			"For the others, provide host, port, username and password; port 0 picks the backend's default.",
		InputSchema:  req,
		OutputSchema: res,
		Annotations:  &mcp.ToolAnnotations{ReadOnlyHint: false, IdempotentHint: false},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ConnectInput) (*mcp.CallToolResult, ConnectOutput, error) {
		out := s.handleConnect(ctx, in)
		return nil, out, nil
	})
	return nil
}

func (s *Server) handleConnect(ctx context.Context, in ConnectInput) ConnectOutput {
	start := time.Now()
	s.log.Debug("server: handling connect_database", "dbtype", in.DBType, "host", in.Host, "dbname", in.DBName)

	backendType, err := database.ParseBackendType(in.DBType)
	if err != nil {
		observeToolCall("connect_database", start, false)
		return ConnectOutput{
			Message: "Database connection failed",
			Failure: failureFrom(fmt.Errorf("%w: %v", database.ErrInvalidConfig, err), ""),
		}
	}

	status, err := s.manager.Connect(ctx, database.ConnectionConfig{
		Type:     backendType,
		Host:     in.Host,
		Port:     in.Port,
		Username: in.Username,
		Password: in.Password,
		Database: in.DBName,
	})
	if err != nil {
		observeToolCall("connect_database", start, false)
		return ConnectOutput{
			Message: "Database connection failed",
			Failure: failureFrom(err, backendType),
		}
	}

	out := ConnectOutput{
		Success:    true,
		Message:    fmt.Sprintf("Successfully connected to %s database", backendType),
		Connection: &status,
	}
	if info, ok := s.manager.Info(); ok {
		out.Server = &info
	}
	observeToolCall("connect_database", start, true)
	return out
}
