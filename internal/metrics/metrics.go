// Package metrics exposes Prometheus instrumentation for probes and ticks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

var (
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uptimekit_probe_duration_seconds",
			Help:    "Time spent executing probes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "status"},
	)

	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptimekit_checks_total",
			Help: "Total number of checks executed",
		},
		[]string{"type", "status"},
	)

	MonitorStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uptimekit_monitor_status",
			Help: "Current status of monitors (0=unknown, 1=up, 2=slow, 3=down)",
		},
		[]string{"monitor", "type"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uptimekit_tick_duration_seconds",
			Help:    "Time spent running a scheduling tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uptimekit_store_errors_total",
			Help: "Total history store failures",
		},
		[]string{"operation"},
	)
)

// RecordCheck records one completed probe.
func RecordCheck(typ checker.Type, status checker.Status, elapsed time.Duration) {
	ProbeDuration.WithLabelValues(string(typ), string(status)).Observe(elapsed.Seconds())
	ChecksTotal.WithLabelValues(string(typ), string(status)).Inc()
}

// SetMonitorStatus publishes the latest status of a monitor.
func SetMonitorStatus(monitor string, typ checker.Type, status checker.Status) {
	MonitorStatus.WithLabelValues(monitor, string(typ)).Set(statusValue(status))
}

// RecordTick records the wall time of one scheduling tick.
func RecordTick(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	StoreErrors.WithLabelValues(operation).Inc()
}

// ForgetMonitor drops every status series of a monitor, whatever type it was
// recorded under. It returns the number of series removed.
func ForgetMonitor(monitor string) int {
	return MonitorStatus.DeletePartialMatch(prometheus.Labels{"monitor": monitor})
}

func statusValue(s checker.Status) float64 {
	switch s {
	case checker.StatusUp:
		return 1
	case checker.StatusSlow:
		return 2
	case checker.StatusDown:
		return 3
	default:
		return 0
	}
}
