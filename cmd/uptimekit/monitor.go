package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

type monitorStore interface {
	AddMonitor(ctx context.Context, spec storage.MonitorSpec) (storage.Monitor, error)
	ListMonitors(ctx context.Context) ([]storage.Monitor, error)
	SetPaused(ctx context.Context, id int64, paused bool) error
	DeleteMonitor(ctx context.Context, id int64) error
}

func checkerType(s string) checker.Type {
	t, _ := checker.ParseType(s)
	return t
}

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage monitors",
	}

	var typ string
	add := &cobra.Command{
		Use:   "add NAME TARGET",
		Short: "Add a monitor",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, db monitorStore, args []string) error {
			if _, ok := checker.ParseType(typ); !ok {
				return fmt.Errorf("invalid type %q (must be http, dns, or icmp)", typ)
			}
			return addMonitor(cmd.Context(), cmd.OutOrStdout(), db, args[0], args[1], typ)
		}),
	}
	add.Flags().StringVarP(&typ, "type", "t", string(checker.TypeHTTP), "probe type: http, dns, or icmp")

	list := &cobra.Command{
		Use:   "list",
		Short: "List monitors",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, db monitorStore, _ []string) error {
			return listMonitors(cmd.Context(), cmd.OutOrStdout(), db)
		}),
	}

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a monitor and its history",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, db monitorStore, args []string) error {
			return removeMonitor(cmd.Context(), cmd.OutOrStdout(), db, args[0])
		}),
	}

	pause := &cobra.Command{
		Use:   "pause ID",
		Short: "Stop probing a monitor",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, db monitorStore, args []string) error {
			return setPaused(cmd.Context(), cmd.OutOrStdout(), db, args[0], true)
		}),
	}

	resume := &cobra.Command{
		Use:   "resume ID",
		Short: "Resume probing a paused monitor",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, db monitorStore, args []string) error {
			return setPaused(cmd.Context(), cmd.OutOrStdout(), db, args[0], false)
		}),
	}

	cmd.AddCommand(add, list, rm, pause, resume)
	return cmd
}

// withStore opens the configured database around fn.
func withStore(fn func(*cobra.Command, monitorStore, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		return fn(cmd, db, args)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid monitor id %q", s)
	}
	return id, nil
}

func addMonitor(ctx context.Context, out io.Writer, db monitorStore, name, target, typ string) error {
	m, err := db.AddMonitor(ctx, storage.MonitorSpec{Name: name, Target: target, Type: checkerType(typ)})
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("a %s monitor for %q already exists", checkerType(typ), target)
	}
	if err != nil {
		return fmt.Errorf("adding monitor: %w", err)
	}
	fmt.Fprintf(out, "Added monitor %d (%s %s)\n", m.ID, m.Type, m.Target)
	return nil
}

func listMonitors(ctx context.Context, out io.Writer, db monitorStore) error {
	monitors, err := db.ListMonitors(ctx)
	if err != nil {
		return fmt.Errorf("listing monitors: %w", err)
	}
	if len(monitors) == 0 {
		fmt.Fprintln(out, "No monitors.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tTARGET\tPAUSED")
	for _, m := range monitors {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", m.ID, m.Name, m.Type, m.Target, m.Paused)
	}
	return w.Flush()
}

func removeMonitor(ctx context.Context, out io.Writer, db monitorStore, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	if err := db.DeleteMonitor(ctx, id); err != nil {
		return fmt.Errorf("deleting monitor %d: %w", id, err)
	}
	fmt.Fprintf(out, "Deleted monitor %d\n", id)
	return nil
}

func setPaused(ctx context.Context, out io.Writer, db monitorStore, arg string, paused bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	if err := db.SetPaused(ctx, id, paused); err != nil {
		return fmt.Errorf("updating monitor %d: %w", id, err)
	}
	verb := "Resumed"
	if paused {
		verb = "Paused"
	}
	fmt.Fprintf(out, "%s monitor %d\n", verb, id)
	return nil
}
