package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addMonitor(t *testing.T, db *storage.DB, name, target string, typ checker.Type) storage.Monitor {
	t.Helper()
	m, err := db.AddMonitor(context.Background(), storage.MonitorSpec{Name: name, Target: target, Type: typ})
	if err != nil {
		t.Fatalf("AddMonitor(%q): %v", name, err)
	}
	return m
}

func writeCheck(t *testing.T, db *storage.DB, id int64, status checker.Status, responseMs int64, at time.Time) {
	t.Helper()
	err := db.WriteCheckResult(context.Background(), storage.CheckResult{
		MonitorID:  id,
		Status:     status,
		ResponseMs: responseMs,
		CheckedAt:  at,
	})
	if err != nil {
		t.Fatalf("WriteCheckResult: %v", err)
	}
}

func TestAddMonitor_Defaults(t *testing.T) {
	db := openTestDB(t)

	m := addMonitor(t, db, " api ", " https://example.com ", "")
	if m.ID == 0 {
		t.Error("expected a non-zero id")
	}
	if m.Name != "api" || m.Target != "https://example.com" {
		t.Errorf("expected trimmed fields, got %q %q", m.Name, m.Target)
	}
	if m.Type != checker.TypeHTTP {
		t.Errorf("expected type http, got %q", m.Type)
	}
	if m.Status != checker.StatusUnknown {
		t.Errorf("expected status unknown, got %q", m.Status)
	}
	if m.LastCheckedAt != nil {
		t.Errorf("expected no last check, got %v", m.LastCheckedAt)
	}
	if m.Paused {
		t.Error("expected new monitor to be active")
	}
	if m.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestAddMonitor_Validation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cases := []storage.MonitorSpec{
		{Name: "", Target: "https://example.com"},
		{Name: "api", Target: "   "},
	}
	for _, spec := range cases {
		if _, err := db.AddMonitor(ctx, spec); !errors.Is(err, storage.ErrInvalid) {
			t.Errorf("AddMonitor(%+v): expected ErrInvalid, got %v", spec, err)
		}
	}
}

func TestAddMonitor_Duplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	addMonitor(t, db, "api", "example.com", checker.TypeDNS)

	_, err := db.AddMonitor(ctx, storage.MonitorSpec{Name: "again", Target: "example.com", Type: checker.TypeDNS})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same target with a different type is a different monitor.
	if _, err := db.AddMonitor(ctx, storage.MonitorSpec{Name: "ping", Target: "example.com", Type: checker.TypeICMP}); err != nil {
		t.Fatalf("expected different type to be accepted: %v", err)
	}
}

func TestGetMonitor_NotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetMonitor(context.Background(), 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMonitors_OrderedByID(t *testing.T) {
	db := openTestDB(t)

	empty, err := db.ListMonitors(context.Background())
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}

	a := addMonitor(t, db, "a", "https://a.example.com", checker.TypeHTTP)
	b := addMonitor(t, db, "b", "b.example.com", checker.TypeDNS)

	list, err := db.ListMonitors(context.Background())
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestUpdateMonitor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	addMonitor(t, db, "other", "https://other.example.com", checker.TypeHTTP)

	got, err := db.UpdateMonitor(ctx, m.ID, storage.MonitorSpec{Name: "renamed", Target: "example.com", Type: checker.TypeICMP})
	if err != nil {
		t.Fatalf("UpdateMonitor: %v", err)
	}
	if got.Name != "renamed" || got.Target != "example.com" || got.Type != checker.TypeICMP {
		t.Errorf("unexpected monitor after update: %+v", got)
	}

	_, err = db.UpdateMonitor(ctx, m.ID, storage.MonitorSpec{Name: "x", Target: "https://other.example.com", Type: checker.TypeHTTP})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	_, err = db.UpdateMonitor(ctx, 999, storage.MonitorSpec{Name: "x", Target: "y"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetPaused(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	if err := db.SetPaused(ctx, m.ID, true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	got, _ := db.GetMonitor(ctx, m.ID)
	if !got.Paused {
		t.Error("expected monitor to be paused")
	}

	if err := db.SetPaused(ctx, m.ID, false); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	got, _ = db.GetMonitor(ctx, m.ID)
	if got.Paused {
		t.Error("expected monitor to be resumed")
	}

	if err := db.SetPaused(ctx, 999, true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteCheckResult_UpdatesLiveState(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)

	err := db.WriteCheckResult(ctx, storage.CheckResult{
		MonitorID:  m.ID,
		Status:     checker.StatusDown,
		ResponseMs: 5200,
		Error:      "unexpected status 503 Service Unavailable",
		CheckedAt:  at,
	})
	if err != nil {
		t.Fatalf("WriteCheckResult: %v", err)
	}

	got, err := db.GetMonitor(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if got.Status != checker.StatusDown || got.ResponseMs != 5200 {
		t.Errorf("unexpected live state: %+v", got)
	}
	if got.LastCheckedAt == nil || !got.LastCheckedAt.Equal(at) {
		t.Errorf("expected last check %v, got %v", at, got.LastCheckedAt)
	}

	history, total, err := db.History(ctx, m.ID, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 1 || len(history) != 1 {
		t.Fatalf("expected one record, got total=%d len=%d", total, len(history))
	}
	rec := history[0]
	if rec.MonitorID != m.ID || rec.Status != checker.StatusDown || rec.ResponseMs != 5200 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Error != "unexpected status 503 Service Unavailable" {
		t.Errorf("unexpected error text %q", rec.Error)
	}
	if !rec.CheckedAt.Equal(at) {
		t.Errorf("expected checked_at %v, got %v", at, rec.CheckedAt)
	}
}

func TestWriteCheckResult_DeletedMonitor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	if err := db.DeleteMonitor(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}

	err := db.WriteCheckResult(ctx, storage.CheckResult{MonitorID: m.ID, Status: checker.StatusUp, CheckedAt: time.Now()})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, total, err := db.History(ctx, m.ID, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 0 {
		t.Errorf("expected no orphan records, got %d", total)
	}
}

func TestHistory_OrderAndPagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		writeCheck(t, db, m.ID, checker.StatusUp, int64(i*10), base.Add(time.Duration(i)*time.Minute))
	}

	page, total, err := db.History(ctx, m.ID, 2, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(page) != 2 || page[0].ResponseMs != 40 || page[1].ResponseMs != 30 {
		t.Errorf("expected newest first, got %+v", page)
	}

	next, _, err := db.History(ctx, m.ID, 2, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(next) != 2 || next[0].ResponseMs != 20 {
		t.Errorf("unexpected second page: %+v", next)
	}
}

func TestUptimePercent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)

	pct, err := db.UptimePercent(ctx, m.ID, storage.DefaultWindow)
	if err != nil {
		t.Fatalf("UptimePercent: %v", err)
	}
	if pct != 100 {
		t.Errorf("expected 100 with no data, got %v", pct)
	}

	now := time.Now().UTC()
	for i := 0; i < 7; i++ {
		writeCheck(t, db, m.ID, checker.StatusUp, 100, now.Add(-time.Duration(i+1)*time.Minute))
	}
	for i := 0; i < 3; i++ {
		writeCheck(t, db, m.ID, checker.StatusSlow, 1500, now.Add(-time.Duration(i+10)*time.Minute))
	}
	// Outside the window.
	writeCheck(t, db, m.ID, checker.StatusDown, 0, now.Add(-48*time.Hour))

	pct, err = db.UptimePercent(ctx, m.ID, storage.DefaultWindow)
	if err != nil {
		t.Fatalf("UptimePercent: %v", err)
	}
	if pct != 70.0 {
		t.Errorf("expected 70.0, got %v", pct)
	}
}

func TestDeleteMonitor_Cascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	writeCheck(t, db, m.ID, checker.StatusUp, 10, time.Now())
	writeCheck(t, db, m.ID, checker.StatusUp, 12, time.Now())

	if err := db.DeleteMonitor(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}
	if _, err := db.GetMonitor(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected monitor to be gone, got %v", err)
	}
	_, total, err := db.History(ctx, m.ID, 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 0 {
		t.Errorf("expected records to be removed, got %d", total)
	}

	if err := db.DeleteMonitor(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	// The target/type pair is free again.
	again := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	if again.ID == m.ID {
		t.Error("expected a fresh id")
	}
}

func TestChartBuckets(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := addMonitor(t, db, "a", "https://a.example.com", checker.TypeHTTP)
	b := addMonitor(t, db, "b", "https://b.example.com", checker.TypeHTTP)

	hour := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)
	writeCheck(t, db, a.ID, checker.StatusUp, 100, hour.Add(5*time.Minute))
	writeCheck(t, db, b.ID, checker.StatusDown, 300, hour.Add(6*time.Minute))
	writeCheck(t, db, a.ID, checker.StatusUp, 200, hour.Add(65*time.Minute))

	fleet, err := db.ChartBuckets(ctx, nil, storage.DefaultWindow, time.Hour)
	if err != nil {
		t.Fatalf("ChartBuckets: %v", err)
	}
	if len(fleet) != 2 {
		t.Fatalf("expected 2 fleet buckets, got %d", len(fleet))
	}
	if fleet[0].Count != 2 || fleet[0].Uptime != 50 || fleet[0].AvgResponseMs != 200 {
		t.Errorf("unexpected first fleet bucket: %+v", fleet[0])
	}

	only, err := db.ChartBuckets(ctx, &b.ID, storage.DefaultWindow, 10*time.Minute)
	if err != nil {
		t.Fatalf("ChartBuckets: %v", err)
	}
	if len(only) != 1 || only[0].Uptime != 0 || only[0].Count != 1 {
		t.Errorf("unexpected monitor buckets: %+v", only)
	}
}

func TestDowntimes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	m := addMonitor(t, db, "api", "https://example.com", checker.TypeHTTP)
	base := time.Now().UTC().Add(-time.Hour)
	writeCheck(t, db, m.ID, checker.StatusUp, 10, base)
	writeCheck(t, db, m.ID, checker.StatusDown, 0, base.Add(time.Minute))
	writeCheck(t, db, m.ID, checker.StatusDown, 0, base.Add(2*time.Minute))
	writeCheck(t, db, m.ID, checker.StatusUp, 10, base.Add(3*time.Minute))

	got, err := db.Downtimes(ctx, m.ID, storage.DefaultWindow)
	if err != nil {
		t.Fatalf("Downtimes: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 period, got %d", len(got))
	}
	if got[0].Ongoing || got[0].Seconds != 120 {
		t.Errorf("unexpected period: %+v", got[0])
	}
}
