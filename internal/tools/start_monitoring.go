package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/driftwatch/driftwatch/internal/monitor"
	"github.com/driftwatch/driftwatch/internal/session"
)

// StartMonitoringTool creates a new monitoring session.
type StartMonitoringTool struct {
	coordinator Coordinator
}

// NewStartMonitoringTool creates the start_monitoring tool.
func NewStartMonitoringTool(coordinator Coordinator) *StartMonitoringTool {
	return &StartMonitoringTool{coordinator: coordinator}
}

func (t *StartMonitoringTool) Definition() mcp.Tool {
	return mcp.NewTool("start_monitoring",
		mcp.WithDescription("Start visual-regression monitoring of a web page or screen region against a reference image. Captures immediately, then on the configured interval."),
		mcp.WithString("target_type",
			mcp.Description("Capture target kind: 'url' for a web page, 'screen' for a desktop region"),
			mcp.Enum("url", "screen"),
			mcp.DefaultString("url"),
		),
		mcp.WithString("url",
			mcp.Description("Page URL to monitor (required for url targets)"),
		),
		mcp.WithNumber("viewport_width",
			mcp.Description("Emulated browser viewport width in pixels"),
			mcp.DefaultNumber(1280),
		),
		mcp.WithNumber("viewport_height",
			mcp.Description("Emulated browser viewport height in pixels"),
			mcp.DefaultNumber(800),
		),
		mcp.WithNumber("region_x", mcp.Description("Screen region left edge (screen targets)")),
		mcp.WithNumber("region_y", mcp.Description("Screen region top edge (screen targets)")),
		mcp.WithNumber("region_width", mcp.Description("Screen region width (screen targets)")),
		mcp.WithNumber("region_height", mcp.Description("Screen region height (screen targets)")),
		mcp.WithString("reference_image_path",
			mcp.Required(),
			mcp.Description("Path to the baseline image; must exist"),
		),
		mcp.WithNumber("interval_seconds",
			mcp.Description("Polling period in seconds, 1-300"),
			mcp.DefaultNumber(30),
		),
		mcp.WithBoolean("auto_feedback",
			mcp.Description("Run automated feedback analysis when a significant change appears"),
			mcp.DefaultBool(false),
		),
	)
}

func (t *StartMonitoringTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	referencePath, err := req.RequireString("reference_image_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	target := session.Target{
		Type: session.TargetType(req.GetString("target_type", "url")),
	}
	switch target.Type {
	case session.TargetURL:
		target.URL = req.GetString("url", "")
		target.Viewport = &session.Viewport{
			Width:  req.GetInt("viewport_width", 1280),
			Height: req.GetInt("viewport_height", 800),
		}
	case session.TargetScreen:
		if w := req.GetInt("region_width", 0); w > 0 {
			target.Region = &session.Region{
				X:      req.GetInt("region_x", 0),
				Y:      req.GetInt("region_y", 0),
				Width:  w,
				Height: req.GetInt("region_height", 0),
			}
		}
	}

	id, err := t.coordinator.StartMonitoring(ctx, monitor.StartSpec{
		Target:             target,
		IntervalSeconds:    req.GetInt("interval_seconds", 0),
		ReferenceImagePath: referencePath,
		AutoFeedback:       req.GetBool("auto_feedback", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"session_id": id,
		"message":    "monitoring started",
	})
}
