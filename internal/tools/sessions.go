package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// GetSessionTool returns one session document.
type GetSessionTool struct {
	coordinator Coordinator
}

// NewGetSessionTool creates the get_monitoring_session tool.
func NewGetSessionTool(coordinator Coordinator) *GetSessionTool {
	return &GetSessionTool{coordinator: coordinator}
}

func (t *GetSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("get_monitoring_session",
		mcp.WithDescription("Return one monitoring session with its full capture history."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Id of the session")),
	)
}

func (t *GetSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess, err := t.coordinator.GetSession(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(sess)
}

// GetAllSessionsTool returns every session held by the coordinator.
type GetAllSessionsTool struct {
	coordinator Coordinator
}

// NewGetAllSessionsTool creates the get_all_monitoring_sessions tool.
func NewGetAllSessionsTool(coordinator Coordinator) *GetAllSessionsTool {
	return &GetAllSessionsTool{coordinator: coordinator}
}

func (t *GetAllSessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_all_monitoring_sessions",
		mcp.WithDescription("Return all monitoring sessions, active and paused."),
	)
}

func (t *GetAllSessionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.coordinator.GetAllSessions())
}
