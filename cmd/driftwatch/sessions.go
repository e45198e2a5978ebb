package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/internal/session"
	"github.com/driftwatch/driftwatch/internal/store"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List persisted monitoring sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			st := store.New(cfg.Sessions.Directory, logr.Discard())
			sessions, err := st.LoadAll()
			if err != nil {
				return fmt.Errorf("failed to load sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Printf("No sessions found in %s\n", st.Root())
				return nil
			}

			renderSessions(sessions)
			return nil
		},
	}
}

func renderSessions(sessions []*session.Session) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Target", "State", "Interval", "Captures", "Significant", "Started"})

	for _, sess := range sessions {
		significant := 0
		for _, c := range sess.Screenshots {
			if c.HasSignificantChange {
				significant++
			}
		}

		t.AppendRow(table.Row{
			sess.ID,
			sess.Target.String(),
			stateLabel(sess.IsActive),
			fmt.Sprintf("%ds", sess.IntervalSeconds),
			len(sess.Screenshots),
			significant,
			sess.StartTime.Format(time.RFC3339),
		})
	}

	t.Render()
}

func stateLabel(active bool) string {
	if active {
		return color.GreenString("active")
	}
	return color.YellowString("paused")
}
