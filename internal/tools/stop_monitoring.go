package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StopMonitoringTool terminates a session and returns its summary.
type StopMonitoringTool struct {
	coordinator Coordinator
}

// NewStopMonitoringTool creates the stop_monitoring tool.
func NewStopMonitoringTool(coordinator Coordinator) *StopMonitoringTool {
	return &StopMonitoringTool{coordinator: coordinator}
}

func (t *StopMonitoringTool) Definition() mcp.Tool {
	return mcp.NewTool("stop_monitoring",
		mcp.WithDescription("Stop a monitoring session, delete its stored state, and return its summary."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Id returned by start_monitoring"),
		),
	)
}

func (t *StopMonitoringTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary, err := t.coordinator.StopMonitoring(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(summary)
}
