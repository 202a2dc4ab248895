package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hazz-dev/uptimekit/internal/config"
	"github.com/hazz-dev/uptimekit/internal/dashboard"
	"github.com/hazz-dev/uptimekit/internal/events"
	"github.com/hazz-dev/uptimekit/internal/logging"
	"github.com/hazz-dev/uptimekit/internal/scheduler"
	"github.com/hazz-dev/uptimekit/internal/server"
	"github.com/hazz-dev/uptimekit/internal/storage"
	"github.com/hazz-dev/uptimekit/internal/version"
)

var cfgFile string

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "uptimekit",
		Short:        "Self-hosted uptime monitor",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(monitorCmd())

	return root
}

// loadConfig reads the --config file. The default path may be absent, in
// which case defaults and environment overrides apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if f := cmd.Flag("config"); f == nil || !f.Changed {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "uptimekit %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduler and the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	// 1. Load config
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// 2. Build logger
	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(logCloser))
	slog.SetDefault(logger)

	// 3. Open SQLite
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(db))

	// 4. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	seedMonitors(ctx, db, cfg.Monitors, logger)

	// 5. Build scheduler
	factory := scheduler.NewProberFactory(cfg.Probes.CheckerOptions())
	sched := scheduler.New(db, factory, scheduler.Options{
		Interval:      cfg.Scheduler.Interval.Duration(),
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
	}, logger)

	// 6. Kafka event stream (if configured)
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer multierr.AppendInvoke(&err, multierr.Close(publisher))
		sched.SetOnResult(publisher.Notify)
		logger.Info("publishing check events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// 7. Build API server
	apiServer := server.New(db, sched, cfg.Server.CORSOrigins, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Router())
	mux.Handle("/metrics", apiServer.Router())
	mux.Handle("/", dashboard.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 8. Start scheduler
	sched.Start(ctx)
	logger.Info("scheduler started", "interval", cfg.Scheduler.Interval, "max_concurrent", cfg.Scheduler.MaxConcurrent)

	// 9. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address, "version", version.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 10. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		sched.Wait()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 11. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	sched.Wait()

	logger.Info("shutdown complete")
	return nil
}

type seedStore interface {
	AddMonitor(ctx context.Context, spec storage.MonitorSpec) (storage.Monitor, error)
}

// seedMonitors creates the monitors declared in the config file. Monitors
// that already exist are left untouched.
func seedMonitors(ctx context.Context, db seedStore, monitors []config.MonitorConfig, logger *slog.Logger) int {
	added := 0
	for _, mc := range monitors {
		m, err := db.AddMonitor(ctx, storage.MonitorSpec{
			Name:   mc.Name,
			Target: mc.Target,
			Type:   checkerType(mc.Type),
		})
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			logger.Debug("monitor already exists", "name", mc.Name, "target", mc.Target)
		case err != nil:
			logger.Error("adding configured monitor", "name", mc.Name, "error", err)
		default:
			added++
			logger.Info("monitor added from config", "monitor", m.ID, "name", m.Name, "type", m.Type)
		}
	}
	return added
}
