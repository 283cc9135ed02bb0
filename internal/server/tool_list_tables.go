package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
)

type ListTablesInput struct {
	Schema string `json:"schema,omitempty" jsonschema:"Schema name (optional, backend default when empty)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of tables to return (default 100)"`
	Offset int    `json:"offset,omitempty" jsonschema:"Number of tables to skip (default 0)"`
}

type ListTablesOutput struct {
	Success bool                 `json:"success"`
	Tables  []database.TableInfo `json:"tables,omitempty"`
	Count   int                  `json:"count"`
	Total   int                  `json:"total"`
	HasMore bool                 `json:"has_more"`
	Message string               `json:"message,omitempty"`
	Failure
}

func (s *Server) registerListTablesTool() error {
	req, err := jsonschema.For[ListTablesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_tables input schema: %w", err)
	}
	res, err := jsonschema.For[ListTablesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_tables output schema: %w", err)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "list_tables",
		Description: "List tables and views in the connected database. " +
			"Returns names, kinds and best-effort row count estimates, paginated with limit/offset. " +
			"Connect with connect_database first.",
		InputSchema:  req,
		OutputSchema: res,
		Annotations:  &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListTablesInput) (*mcp.CallToolResult, ListTablesOutput, error) {
		out := s.handleListTables(ctx, in)
		return nil, out, nil
	})
	return nil
}

func (s *Server) handleListTables(ctx context.Context, in ListTablesInput) ListTablesOutput {
	start := time.Now()
	s.log.Debug("server: handling list_tables", "schema", in.Schema, "limit", in.Limit, "offset", in.Offset)

	list, err := s.manager.ListTables(ctx, in.Schema, in.Limit, in.Offset)
	if err != nil {
		observeToolCall("list_tables", start, false)
		return ListTablesOutput{
			Message: "Failed to list tables",
			Failure: failureFrom(err, s.manager.ActiveBackend()),
		}
	}

	observeToolCall("list_tables", start, true)
	return ListTablesOutput{
		Success: true,
		Tables:  list.Tables,
		Count:   len(list.Tables),
		Total:   list.Total,
		HasMore: list.HasMore,
		Message: fmt.Sprintf("Found %d tables, showing %d", list.Total, len(list.Tables)),
	}
}
