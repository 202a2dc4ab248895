package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/stats"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print current monitor status from the database",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}

type statusStore interface {
	ListMonitors(ctx context.Context) ([]storage.Monitor, error)
}

var statusColors = map[checker.Status]*color.Color{
	checker.StatusUp:      color.New(color.FgGreen),
	checker.StatusSlow:    color.New(color.FgYellow),
	checker.StatusDown:    color.New(color.FgRed, color.Bold),
	checker.StatusUnknown: color.New(color.Faint),
}

func colorStatus(m storage.Monitor) string {
	if m.Paused {
		return color.New(color.Faint).Sprint("paused")
	}
	if c, ok := statusColors[m.Status]; ok {
		return c.Sprint(string(m.Status))
	}
	return string(m.Status)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	monitors, err := db.ListMonitors(ctx)
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(monitors) == 0 {
		fmt.Fprintln(out, "No monitors. Add one with 'uptimekit monitor add'.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMONITOR\tTYPE\tTARGET\tSTATUS\tRESPONSE\tLAST CHECKED")
	for _, m := range monitors {
		resp := "-"
		if m.ResponseMs > 0 {
			resp = fmt.Sprintf("%dms", m.ResponseMs)
		}
		last := "never"
		if m.LastCheckedAt != nil {
			last = humanize.Time(*m.LastCheckedAt)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID,
			m.Name,
			m.Type,
			m.Target,
			colorStatus(m),
			resp,
			last,
		)
	}
	w.Flush()

	s := stats.Summarize(storage.MonitorStates(monitors))
	fmt.Fprintf(out, "\n%d up, %d slow, %d down, %d paused", s.Up, s.Slow, s.Down, s.Paused)
	if s.HealthScore != nil {
		fmt.Fprintf(out, " (health %d/100, p95 %dms)", *s.HealthScore, s.P95ResponseMs)
	}
	fmt.Fprintln(out)
	return nil
}
