package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/config"
)

func TestMonitorLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	var buf bytes.Buffer

	if err := addMonitor(ctx, &buf, db, "resolver", "example.com", "dns"); err != nil {
		t.Fatalf("addMonitor: %v", err)
	}
	if !strings.Contains(buf.String(), "Added monitor 1 (dns example.com)") {
		t.Errorf("unexpected add output: %q", buf.String())
	}

	if err := addMonitor(ctx, &buf, db, "again", "example.com", "DNS"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected duplicate error, got %v", err)
	}

	if err := setPaused(ctx, &buf, db, "1", true); err != nil {
		t.Fatalf("setPaused: %v", err)
	}
	buf.Reset()
	if err := listMonitors(ctx, &buf, db); err != nil {
		t.Fatalf("listMonitors: %v", err)
	}
	if !strings.Contains(buf.String(), "resolver") || !strings.Contains(buf.String(), "true") {
		t.Errorf("expected paused monitor in list, got:\n%s", buf.String())
	}

	if err := removeMonitor(ctx, &buf, db, "1"); err != nil {
		t.Fatalf("removeMonitor: %v", err)
	}
	buf.Reset()
	listMonitors(ctx, &buf, db)
	if !strings.Contains(buf.String(), "No monitors.") {
		t.Errorf("expected empty list, got:\n%s", buf.String())
	}
}

func TestMonitorCommands_InvalidID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := removeMonitor(ctx, io.Discard, db, "abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
	if err := setPaused(ctx, io.Discard, db, "-4", true); err == nil {
		t.Error("expected error for negative id")
	}
	if err := setPaused(ctx, io.Discard, db, "42", false); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestSeedMonitors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	seed := []config.MonitorConfig{
		{Name: "api", Target: "https://example.com"},
		{Name: "ping", Type: "icmp", Target: "example.com"},
	}
	if n := seedMonitors(ctx, db, seed, logger); n != 2 {
		t.Fatalf("expected 2 monitors added, got %d", n)
	}
	// Second run is a no-op.
	if n := seedMonitors(ctx, db, seed, logger); n != 0 {
		t.Errorf("expected no monitors added on rerun, got %d", n)
	}

	monitors, _ := db.ListMonitors(ctx)
	if len(monitors) != 2 || monitors[1].Type != checker.TypeICMP {
		t.Errorf("unexpected monitors: %+v", monitors)
	}
}

func TestVersionCommand(t *testing.T) {
	root := rootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "uptimekit dev") {
		t.Errorf("unexpected version output: %q", buf.String())
	}
}
