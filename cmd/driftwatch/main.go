package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/driftwatch/driftwatch/internal/server"
)

const defaultConfigPath = "config/driftwatch.yaml"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "driftwatch",
		Short:        "Visual regression monitoring over MCP",
		Long:         "driftwatch captures rendering targets on an interval, compares them against reference images, and reports visual drift through MCP tools.",
		Version:      server.Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
