package server

import (
	"time"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
	"github.com/sqltools-project/sqltools-mcp/internal/server/metrics"
)

// Failure is the structured error payload embedded in every tool output.
// Errors never surface as protocol faults; the caller always gets a result
// with Success=false, the classified kind and remediation suggestions when
// the kind is known.
type Failure struct {
	Kind        string   `json:"kind,omitempty"`
	Error       string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func failureFrom(err error, backend database.BackendType) Failure {
	return Failure{
		Kind:        database.ErrorKind(err),
		Error:       err.Error(),
		Suggestions: database.Suggestions(err, backend),
	}
}

func observeToolCall(name string, start time.Time, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
