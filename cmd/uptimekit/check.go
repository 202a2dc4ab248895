package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/scheduler"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one check of every active monitor and print the results",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	factory := scheduler.NewProberFactory(cfg.Probes.CheckerOptions())
	return runChecks(cmd.Context(), cmd.OutOrStdout(), db, factory, cfg.Scheduler.MaxConcurrent)
}

// runChecks runs a single scheduling tick and prints one row per probed
// monitor. It returns an error when any probed monitor is not up.
func runChecks(ctx context.Context, out io.Writer, store scheduler.Store, factory scheduler.ProberFactory, maxConcurrent int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		mu      sync.Mutex
		results []scheduler.Result
	)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.New(store, factory, scheduler.Options{MaxConcurrent: maxConcurrent}, quiet)
	sched.SetOnResult(func(r scheduler.Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	rep := sched.Tick(ctx)
	if rep.Total == 0 {
		fmt.Fprintln(out, "No monitors configured. Add one with 'uptimekit monitor add'.")
		return nil
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Monitor.ID < results[j].Monitor.ID })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMONITOR\tTYPE\tSTATUS\tRESPONSE\tERROR")
	allUp := true
	for _, r := range results {
		errText := r.Outcome.Err
		if r.Err != nil {
			errText = fmt.Sprintf("not stored: %v", r.Err)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%dms\t%s\n",
			r.Monitor.ID,
			r.Monitor.Name,
			r.Monitor.Type,
			r.Status,
			r.Outcome.ElapsedMs(),
			errText,
		)
		if r.Status != checker.StatusUp {
			allUp = false
		}
	}
	w.Flush()

	if rep.Paused > 0 {
		fmt.Fprintf(out, "%d paused monitor(s) skipped\n", rep.Paused)
	}
	if !allUp {
		return fmt.Errorf("one or more monitors are not up")
	}
	return nil
}
