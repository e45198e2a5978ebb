package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// PauseMonitoringTool stops a session's scheduler without discarding
// the session.
type PauseMonitoringTool struct {
	coordinator Coordinator
}

// NewPauseMonitoringTool creates the pause_monitoring tool.
func NewPauseMonitoringTool(coordinator Coordinator) *PauseMonitoringTool {
	return &PauseMonitoringTool{coordinator: coordinator}
}

func (t *PauseMonitoringTool) Definition() mcp.Tool {
	return mcp.NewTool("pause_monitoring",
		mcp.WithDescription("Pause a monitoring session. The session and its history stay on disk; resume_monitoring picks it back up."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Id of the session to pause")),
	)
}

func (t *PauseMonitoringTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !t.coordinator.PauseMonitoring(id) {
		return mcp.NewToolResultError("no running session with id " + id), nil
	}

	return jsonResult(map[string]any{"session_id": id, "message": "monitoring paused"})
}

// ResumeMonitoringTool restarts a paused session's scheduler.
type ResumeMonitoringTool struct {
	coordinator Coordinator
}

// NewResumeMonitoringTool creates the resume_monitoring tool.
func NewResumeMonitoringTool(coordinator Coordinator) *ResumeMonitoringTool {
	return &ResumeMonitoringTool{coordinator: coordinator}
}

func (t *ResumeMonitoringTool) Definition() mcp.Tool {
	return mcp.NewTool("resume_monitoring",
		mcp.WithDescription("Resume a paused monitoring session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Id of the session to resume")),
	)
}

func (t *ResumeMonitoringTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !t.coordinator.ResumeMonitoring(id) {
		return mcp.NewToolResultError("no resumable session with id " + id), nil
	}

	return jsonResult(map[string]any{"session_id": id, "message": "monitoring resumed"})
}
