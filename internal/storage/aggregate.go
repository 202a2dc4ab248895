package storage

import (
	"context"
	"time"

	"github.com/hazz-dev/uptimekit/internal/stats"
)

// DefaultWindow is the trailing window used by uptime and chart queries.
const DefaultWindow = 24 * time.Hour

// UptimePercent returns the share of up checks for a monitor over the
// trailing window, rounded to one decimal. It is exactly 100 when the window
// holds no checks.
func (d *DB) UptimePercent(ctx context.Context, monitorID int64, window time.Duration) (float64, error) {
	up, total, err := d.UptimeCounts(ctx, monitorID, window)
	if err != nil {
		return 0, err
	}
	return stats.UptimePercent(up, total), nil
}

// ChartBuckets returns the check records of the trailing window grouped into
// buckets of the given width, oldest first. A nil monitorID aggregates every
// monitor.
func (d *DB) ChartBuckets(ctx context.Context, monitorID *int64, window, width time.Duration) ([]stats.Bucket, error) {
	records, err := d.ChecksSince(ctx, monitorID, d.now().Add(-window))
	if err != nil {
		return nil, err
	}
	return stats.BucketRecords(Samples(records), width), nil
}

// Downtimes returns the downtime periods of a monitor over the trailing
// window, most recent first.
func (d *DB) Downtimes(ctx context.Context, monitorID int64, window time.Duration) ([]stats.Downtime, error) {
	records, err := d.ChecksSince(ctx, &monitorID, d.now().Add(-window))
	if err != nil {
		return nil, err
	}
	return stats.Downtimes(Samples(records)), nil
}

// Samples converts check records into stats samples.
func Samples(records []CheckRecord) []stats.Sample {
	out := make([]stats.Sample, len(records))
	for i, r := range records {
		out[i] = stats.Sample{Status: r.Status, ResponseMs: r.ResponseMs, CheckedAt: r.CheckedAt}
	}
	return out
}

// MonitorStates converts monitors into the live states used by stats.Summarize.
func MonitorStates(monitors []Monitor) []stats.MonitorState {
	out := make([]stats.MonitorState, len(monitors))
	for i, m := range monitors {
		out[i] = stats.MonitorState{Status: m.Status, ResponseMs: m.ResponseMs, Paused: m.Paused}
	}
	return out
}
