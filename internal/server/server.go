// Package server wires the monitoring core and exposes it as an MCP
// server. This is the composition root: concrete collaborators are
// created here and injected into everything that depends on them. No
// monitoring logic lives here.
package server

import (
	"os"

	"github.com/go-logr/logr"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/driftwatch/driftwatch/internal/capture"
	"github.com/driftwatch/driftwatch/internal/compare"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/feedback"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/monitor"
	"github.com/driftwatch/driftwatch/internal/session"
	"github.com/driftwatch/driftwatch/internal/store"
	"github.com/driftwatch/driftwatch/internal/tools"
	"github.com/driftwatch/driftwatch/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App bundles everything a running daemon needs.
type App struct {
	MCP         *mcpserver.MCPServer
	Coordinator *monitor.Coordinator
	Metrics     *metrics.Metrics

	cleanup []func()
}

// Close releases the app's resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

// New builds the daemon: store, dispatcher, providers, coordinator, and
// the MCP server with all tools registered. Persisted sessions are
// restored and resumed before this returns.
func New(cfg *config.Config, log logr.Logger) (*App, error) {
	app := &App{Metrics: metrics.New()}

	baseDir := cfg.Sessions.Directory
	if !cfg.Sessions.Persist {
		// Ephemeral mode: state lives in a throwaway directory removed at
		// shutdown, so restarts begin clean.
		tmp, err := os.MkdirTemp("", "driftwatch-ephemeral-*")
		if err != nil {
			return nil, err
		}
		baseDir = tmp
		app.cleanup = append(app.cleanup, func() { os.RemoveAll(tmp) })
	}

	st := store.New(baseDir, log.WithName("store"))

	var analyzer feedback.Analyzer
	if cfg.Feedback.Endpoint != "" {
		token := cfg.Feedback.AuthToken
		analyzer = feedback.NewHTTPAnalyzer(cfg.Feedback.Endpoint, func() string { return token })
	}
	dispatcher := feedback.New(analyzer, feedback.Options{
		Enabled:       cfg.Feedback.Enabled && analyzer != nil,
		RateLimit:     cfg.FeedbackRateLimit(),
		MaxConcurrent: cfg.Feedback.MaxConcurrent,
	}, log.WithName("feedback"))
	dispatcher.SetMetrics(app.Metrics)

	captureDir, err := os.MkdirTemp("", "driftwatch-captures-*")
	if err != nil {
		return nil, err
	}
	app.cleanup = append(app.cleanup, func() { os.RemoveAll(captureDir) })

	provider := capture.NewRouter(
		capture.NewWebProvider(captureDir, cfg.Capture.BrowserPath, log.WithName("capture.web")),
		capture.NewScreenProvider(captureDir, log.WithName("capture.screen")),
	)

	deps := monitor.Deps{
		Store:      st,
		Capture:    provider,
		Compare:    compare.NewPixelComparator(log.WithName("compare")),
		Dispatcher: dispatcher,
		Metrics:    app.Metrics,
		Log:        log.WithName("coordinator"),
	}

	if cfg.Sessions.WatchReferences {
		refWatcher, err := watcher.New(log.WithName("watcher"), nil)
		if err != nil {
			return nil, err
		}
		deps.Watcher = refWatcher
		app.cleanup = append(app.cleanup, func() { refWatcher.Close() })
	}

	mcpServer := mcpserver.NewMCPServer(
		"driftwatch",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(serverInstructions()),
	)

	deps.Notifier = monitor.MultiNotifier{
		monitor.LogNotifier{Log: log.WithName("notify")},
		&mcpNotifier{server: mcpServer},
	}

	coordinator := monitor.New(deps, monitor.Options{
		SignificantChangeThreshold: cfg.Monitor.SignificantChangeThreshold,
		DefaultIntervalSeconds:     cfg.Monitor.DefaultIntervalSeconds,
		CaptureTimeout:             cfg.CaptureTimeout(),
		SchedulerJitter:            cfg.SchedulerJitter(),
		SchedulerBackoffMultiplier: cfg.Scheduler.BackoffMultiplier,
		SchedulerMaxBackoff:        cfg.SchedulerMaxBackoff(),
	})
	app.Coordinator = coordinator
	app.cleanup = append(app.cleanup, func() {
		if err := coordinator.Cleanup(); err != nil {
			log.Error(err, "cleanup finished with errors")
		}
	})

	if err := coordinator.Init(); err != nil {
		return nil, err
	}

	registerTools(mcpServer, coordinator)
	app.MCP = mcpServer

	return app, nil
}

func registerTools(s *mcpserver.MCPServer, coordinator tools.Coordinator) {
	startTool := tools.NewStartMonitoringTool(coordinator)
	s.AddTool(startTool.Definition(), startTool.Handle)

	stopTool := tools.NewStopMonitoringTool(coordinator)
	s.AddTool(stopTool.Definition(), stopTool.Handle)

	pauseTool := tools.NewPauseMonitoringTool(coordinator)
	s.AddTool(pauseTool.Definition(), pauseTool.Handle)

	resumeTool := tools.NewResumeMonitoringTool(coordinator)
	s.AddTool(resumeTool.Definition(), resumeTool.Handle)

	getTool := tools.NewGetSessionTool(coordinator)
	s.AddTool(getTool.Definition(), getTool.Handle)

	getAllTool := tools.NewGetAllSessionsTool(coordinator)
	s.AddTool(getAllTool.Definition(), getAllTool.Handle)
}

// mcpNotifier broadcasts significant-change events to connected MCP
// clients.
type mcpNotifier struct {
	server *mcpserver.MCPServer
}

func (n *mcpNotifier) NotifySignificantChange(sessionID string, capture session.Capture) {
	params := map[string]any{
		"session_id": sessionID,
		"capture":    capture.RelativePath,
		"timestamp":  capture.Timestamp,
	}
	if capture.DifferencePercentage != nil {
		params["difference_percentage"] = *capture.DifferencePercentage
	}
	n.server.SendNotificationToAllClients("driftwatch/significant_change", params)
}

func serverInstructions() string {
	return `driftwatch monitors rendering targets for visual regressions.

Start a session with start_monitoring (a URL plus viewport, or a screen
region) against a reference image. Each session captures on its own
interval, compares against the reference, and records the difference.
Significant changes (difference above the configured threshold) raise a
notification and, when auto_feedback is enabled, queue an automated
feedback analysis. Use get_monitoring_session or
get_all_monitoring_sessions to inspect capture history, pause/resume to
suspend a session without losing it, and stop_monitoring to finish and
receive a summary.`
}
