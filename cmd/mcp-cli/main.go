package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"
)

const defaultRequestTimeout = 120 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	endpointFlag := flag.String("endpoint", "", "streamable HTTP endpoint of a running mcp-server (spawns one over stdio when empty)")
	tokenFlag := flag.String("token", "", "bearer token for the HTTP endpoint")
	serverCmdFlag := flag.String("server-cmd", "mcp-server", "server command to spawn for the stdio transport")
	toolFlag := flag.String("tool", "", "tool to call (connect_database, execute_sql, list_tables, describe_table, get_connection_status); empty lists the available tools")
	argsFlag := flag.String("args", "{}", "tool arguments as a JSON object")
	timeoutFlag := flag.Duration("timeout", defaultRequestTimeout, "request timeout")
	flag.Parse()

	log := newLogger(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var args map[string]any
	if err := json.Unmarshal([]byte(*argsFlag), &args); err != nil {
		return fmt.Errorf("failed to parse --args as a JSON object: %w", err)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "sqltools-mcp-cli",
		Version: "1.0.0",
	}, nil)

	var transport mcp.Transport
	if *endpointFlag != "" {
		httpClient := &http.Client{Timeout: *timeoutFlag}
		if *tokenFlag != "" {
			httpClient.Transport = &tokenTransport{base: http.DefaultTransport, token: *tokenFlag}
		}
		transport = &mcp.StreamableClientTransport{
			Endpoint:   *endpointFlag,
			HTTPClient: httpClient,
		}
		log.Debug("cli: dialing http endpoint", "endpoint", *endpointFlag)
	} else {
		cmd := exec.Command(*serverCmdFlag)
		cmd.Stderr = os.Stderr
		transport = &mcp.CommandTransport{Command: cmd}
		log.Debug("cli: spawning server over stdio", "command", *serverCmdFlag)
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to MCP server: %w", err)
	}
	defer session.Close()

	if *toolFlag == "" {
		return listTools(ctx, session)
	}

	callCtx, callCancel := context.WithTimeout(ctx, *timeoutFlag)
	defer callCancel()
	result, err := session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      *toolFlag,
		Arguments: args,
	})
	if err != nil {
		return fmt.Errorf("failed to call tool %q: %w", *toolFlag, err)
	}

	return render(*toolFlag, result)
}

func listTools(ctx context.Context, session *mcp.ClientSession) error {
	result, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tool", "Description"})
	for _, tool := range result.Tools {
		desc := tool.Description
		if len(desc) > 100 {
			desc = desc[:100] + "..."
		}
		table.Append([]string{tool.Name, desc})
	}
	table.Render()
	return nil
}

// render pretty-prints one tool result: tabular for row-shaped outputs,
// indented JSON for everything else.
func render(tool string, result *mcp.CallToolResult) error {
	payload, ok := result.StructuredContent.(map[string]any)
	if !ok {
		for _, content := range result.Content {
			if text, ok := content.(*mcp.TextContent); ok {
				fmt.Println(text.Text)
			}
		}
		return nil
	}

	if success, ok := payload["success"].(bool); ok && !success {
		return renderJSON(payload)
	}

	switch tool {
	case "execute_sql":
		if renderRows(payload) {
			return nil
		}
	case "list_tables":
		if renderObjects(payload, "tables", []string{"name", "kind", "schema", "estimated_rows"}) {
			return nil
		}
	case "describe_table":
		if renderObjects(payload, "columns", []string{"name", "type", "native_type", "nullable", "primary_key", "default"}) {
			return nil
		}
	}
	return renderJSON(payload)
}

// renderRows draws a columns/rows result as a table, reporting whether the
// payload had that shape.
func renderRows(payload map[string]any) bool {
	columnsAny, ok := payload["columns"].([]any)
	if !ok || len(columnsAny) == 0 {
		return false
	}
	columns := make([]string, 0, len(columnsAny))
	for _, c := range columnsAny {
		s, ok := c.(string)
		if !ok {
			return false
		}
		columns = append(columns, s)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(columns)

	rowsAny, _ := payload["rows"].([]any)
	for _, rowAny := range rowsAny {
		row, ok := rowAny.(map[string]any)
		if !ok {
			continue
		}
		cells := make([]string, 0, len(columns))
		for _, col := range columns {
			cells = append(cells, formatCell(row[col]))
		}
		table.Append(cells)
	}
	table.Render()

	if warning, ok := payload["warning"].(string); ok && warning != "" {
		fmt.Printf("warning: %s\n", warning)
	}
	if truncated, ok := payload["truncated"].(bool); ok && truncated {
		fmt.Println("result truncated")
	}
	return true
}

// renderObjects draws a list of uniform objects (tables, columns) with a
// fixed header order.
func renderObjects(payload map[string]any, key string, headers []string) bool {
	itemsAny, ok := payload[key].([]any)
	if !ok {
		return false
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(headers)
	for _, itemAny := range itemsAny {
		item, ok := itemAny.(map[string]any)
		if !ok {
			continue
		}
		cells := make([]string, 0, len(headers))
		for _, h := range headers {
			cells = append(cells, formatCell(item[h]))
		}
		table.Append(cells)
	}
	table.Render()

	if message, ok := payload["message"].(string); ok && message != "" {
		fmt.Println(message)
	}
	return true
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		// JSON numbers decode as float64; show integral values without the
		// trailing .0 noise.
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

func renderJSON(payload map[string]any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// tokenTransport adds the Authorization header to every request.
type tokenTransport struct {
	base  http.RoundTripper
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(cloned)
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
	}))
}
