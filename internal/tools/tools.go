// Package tools exposes the monitoring operations as MCP tools. Each
// tool is a thin handler: validate arguments, call the coordinator,
// render JSON. No monitoring logic lives here.
package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/driftwatch/driftwatch/internal/monitor"
	"github.com/driftwatch/driftwatch/internal/session"
)

// Coordinator is the slice of the monitoring coordinator the tools
// consume.
type Coordinator interface {
	StartMonitoring(ctx context.Context, spec monitor.StartSpec) (string, error)
	StopMonitoring(id string) (*session.Summary, error)
	PauseMonitoring(id string) bool
	ResumeMonitoring(id string) bool
	GetSession(id string) (*session.Session, error)
	GetAllSessions() []*session.Session
}

var _ Coordinator = (*monitor.Coordinator)(nil)

// jsonResult renders v as an MCP text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to render result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
