package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
)

type DescribeTableInput struct {
	TableName string `json:"table_name" jsonschema:"The name of the table to describe"`
	Schema    string `json:"schema,omitempty" jsonschema:"Schema name (optional, backend default when empty)"`
}

type DescribeTableOutput struct {
	Success bool                  `json:"success"`
	Table   string                `json:"table,omitempty"`
	Schema  string                `json:"schema,omitempty"`
	Columns []database.ColumnInfo `json:"columns,omitempty"`
	Count   int                   `json:"count"`
	Message string                `json:"message,omitempty"`
	Failure
}

func (s *Server) registerDescribeTableTool() error {
	req, err := jsonschema.For[DescribeTableInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create describe_table input schema: %w", err)
	}
	res, err := jsonschema.For[DescribeTableOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create describe_table output schema: %w", err)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "describe_table",
		Description: "Inspect the schema of one table: column names, portable and native types, " +
			"nullability, primary keys and default values. Connect with connect_database first.",
		InputSchema:  req,
		OutputSchema: res,
		Annotations:  &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in DescribeTableInput) (*mcp.CallToolResult, DescribeTableOutput, error) {
		out := s.handleDescribeTable(ctx, in)
		return nil, out, nil
	})
	return nil
}

func (s *Server) handleDescribeTable(ctx context.Context, in DescribeTableInput) DescribeTableOutput {
	start := time.Now()
	s.log.Debug("server: handling describe_table", "table", in.TableName, "schema", in.Schema)

	columns, err := s.manager.DescribeTable(ctx, in.TableName, in.Schema)
	if err != nil {
		observeToolCall("describe_table", start, false)
		return DescribeTableOutput{
			Table:   in.TableName,
			Schema:  in.Schema,
			Message: fmt.Sprintf("Failed to describe table %q", in.TableName),
			Failure: failureFrom(err, s.manager.ActiveBackend()),
		}
	}

	observeToolCall("describe_table", start, true)
	return DescribeTableOutput{
		Success: true,
		Table:   in.TableName,
		Schema:  in.Schema,
		Columns: columns,
		Count:   len(columns),
		Message: fmt.Sprintf("Table %q has %d columns", in.TableName, len(columns)),
	}
}
