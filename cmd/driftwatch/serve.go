package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/server"
)

func newServeCmd() *cobra.Command {
	var opsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring daemon as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if opsAddr != "" {
				cfg.Server.OpsAddr = opsAddr
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&opsAddr, "ops-addr", "", "Address for the ops HTTP listener (/healthz, /metrics); overrides server.ops_addr")

	return cmd
}

func runServe(cfg *config.Config) error {
	// Stdout carries the MCP transport, so all logging goes to stderr.
	log, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	app, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.OpsAddr != "" {
		ops := server.NewOpsServer(cfg.Server.OpsAddr, app, log.WithName("ops"))
		go func() {
			if err := ops.Start(); err != nil {
				log.Error(err, "ops server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := ops.Shutdown(shutdownCtx); err != nil {
				log.Error(err, "ops server shutdown error")
			}
		}()
	}

	log.Info("driftwatch serving on stdio", "version", server.Version,
		"sessions", len(app.Coordinator.GetAllSessions()))

	stdio := mcpserver.NewStdioServer(app.MCP)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server error: %w", err)
	}

	log.Info("shutting down")
	return nil
}

// loadConfiguration returns the file's config, or defaults when the file
// does not exist. A missing file is normal for first runs.
func loadConfiguration(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

func newLogger(level string) (logr.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return logr.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	zl, err := zc.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}
