package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ExecuteInput struct {
	Query   string `json:"query" jsonschema:"The SQL statement to execute"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"Query timeout in seconds (default 30)"`
}

type ExecuteOutput struct {
	Success      bool             `json:"success"`
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
	Truncated    bool             `json:"truncated,omitempty"`
	RiskFlag     bool             `json:"risk_flag,omitempty"`
	Warning      string           `json:"warning,omitempty"`
	Message      string           `json:"message,omitempty"`
	Failure
}

func (s *Server) registerExecuteTool() error {
	req, err := jsonschema.For[ExecuteInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute_sql input schema: %w", err)
	}
	res, err := jsonschema.For[ExecuteOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute_sql output schema: %w", err)
	}

	destructive := true
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "execute_sql",
		Description: "Execute a SQL statement on the current connection. " +
			"Supports SELECT queries and DML (INSERT/UPDATE/DELETE). " +
			"Connect with connect_database first. " +
			"Destructive statements (DROP, TRUNCATE, DELETE, ALTER, UPDATE without WHERE) " +
			"still execute but the result carries risk_flag and a warning.",
		InputSchema:  req,
		OutputSchema: res,
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:    false,
			DestructiveHint: &destructive,
			IdempotentHint:  false,
		},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ExecuteInput) (*mcp.CallToolResult, ExecuteOutput, error) {
		out := s.handleExecute(ctx, in)
		return nil, out, nil
	})
	return nil
}

func (s *Server) handleExecute(ctx context.Context, in ExecuteInput) ExecuteOutput {
	start := time.Now()
	s.log.Debug("server: handling execute_sql", "timeout", in.Timeout)

	timeout := s.cfg.QueryTimeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Second
	}

	result, err := s.manager.Execute(ctx, in.Query, timeout)
	if err != nil {
		observeToolCall("execute_sql", start, false)
		return ExecuteOutput{
			Message: "SQL execution failed",
			Failure: failureFrom(err, s.manager.ActiveBackend()),
		}
	}

	observeToolCall("execute_sql", start, true)
	return ExecuteOutput{
		Success:      true,
		Columns:      result.Columns,
		Rows:         result.Rows,
		RowCount:     len(result.Rows),
		RowsAffected: result.RowsAffected,
		Truncated:    result.Truncated,
		RiskFlag:     result.RiskFlag,
		Warning:      result.Warning,
	}
}
