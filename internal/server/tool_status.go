package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
)

type StatusInput struct{}

type StatusOutput struct {
	Connected  bool                 `json:"connected"`
	Connection *database.Status     `json:"connection,omitempty"`
	Server     *database.ServerInfo `json:"server,omitempty"`
	Message    string               `json:"message"`
}

func (s *Server) registerStatusTool() error {
	req, err := jsonschema.For[StatusInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get_connection_status input schema: %w", err)
	}
	res, err := jsonschema.For[StatusOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create get_connection_status output schema: %w", err)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_connection_status",
		Description: "Retrieve the current database connection status: " +
			"backend type, target, server version and uptime. Never includes credentials.",
		InputSchema:  req,
		OutputSchema: res,
		Annotations:  &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
		out := s.handleStatus(ctx)
		return nil, out, nil
	})
	return nil
}

func (s *Server) handleStatus(_ context.Context) StatusOutput {
	start := time.Now()
	s.log.Debug("server: handling get_connection_status")

	status := s.manager.Status()
	if !status.Connected {
		observeToolCall("get_connection_status", start, true)
		return StatusOutput{
			Connected: false,
			Message:   "Not connected to any database",
		}
	}

	out := StatusOutput{
		Connected:  true,
		Connection: &status,
		Message:    fmt.Sprintf("Connected to %s database", status.Type),
	}
	if info, ok := s.manager.Info(); ok {
		out.Server = &info
	}
	observeToolCall("get_connection_status", start, true)
	return out
}
