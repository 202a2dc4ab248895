// Package stats derives uptime, latency and health aggregates from monitor
// state and check history. Everything here is pure; callers load the data.
package stats

import (
	"math"
	"sort"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

// Health score weights and the latency at which the latency term reaches zero.
const (
	uptimeWeight  = 0.5
	issuesWeight  = 0.3
	latencyWeight = 0.2
	maxLatencyMs  = 2000.0
)

// Percentile returns the p-th percentile of values, interpolating linearly
// between the two order statistics around rank p/100*(n-1). It returns 0 for
// an empty input. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// RoundTo rounds v to the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// UptimePercent returns 100*up/total rounded to one decimal, or exactly 100
// when total is zero: no data is not downtime.
func UptimePercent(up, total int) float64 {
	if total <= 0 {
		return 100
	}
	return RoundTo(float64(up)/float64(total)*100, 1)
}

// MonitorState is the live part of a monitor the fleet summary needs.
type MonitorState struct {
	Status     checker.Status
	ResponseMs int64
	Paused     bool
}

// Summary aggregates the live state of every monitor.
type Summary struct {
	Total         int     `json:"total"`
	Up            int     `json:"up"`
	Slow          int     `json:"slow"`
	Down          int     `json:"down"`
	Unknown       int     `json:"unknown"`
	Paused        int     `json:"paused"`
	Issues        int     `json:"issues"`
	AvgResponseMs int64   `json:"avg_response_ms"`
	P95ResponseMs int64   `json:"p95_response_ms"`
	UptimePercent float64 `json:"uptime_percent"`
	HealthScore   *int    `json:"health_score"`
}

// Summarize computes the fleet summary. HealthScore is nil when there are no
// monitors.
func Summarize(monitors []MonitorState) Summary {
	s := Summary{Total: len(monitors)}
	if s.Total == 0 {
		return s
	}

	var sum int64
	positive := make([]float64, 0, len(monitors))
	for _, m := range monitors {
		switch m.Status {
		case checker.StatusUp:
			s.Up++
		case checker.StatusSlow:
			s.Slow++
		case checker.StatusDown:
			s.Down++
		default:
			s.Unknown++
		}
		if m.Paused {
			s.Paused++
		}
		sum += m.ResponseMs
		if m.ResponseMs > 0 {
			positive = append(positive, float64(m.ResponseMs))
		}
	}
	s.Issues = s.Down + s.Slow
	s.AvgResponseMs = int64(math.Round(float64(sum) / float64(s.Total)))
	s.P95ResponseMs = int64(math.Round(Percentile(positive, 95)))
	s.UptimePercent = RoundTo(float64(s.Up)/float64(s.Total)*100, 1)

	score := HealthScore(s.Up, s.Issues, s.Total, float64(s.P95ResponseMs))
	s.HealthScore = &score
	return s
}

// HealthScore blends the up fraction, the issue-free fraction and a latency
// term into an integer between 0 and 100. total must be positive.
func HealthScore(up, issues, total int, p95Ms float64) int {
	if total <= 0 {
		return 0
	}
	uptime := clamp01(float64(up) / float64(total))
	issueFree := clamp01(1 - float64(issues)/float64(total))
	latency := clamp01(1 - p95Ms/maxLatencyMs)

	raw := uptime*uptimeWeight + issueFree*issuesWeight + latency*latencyWeight
	return int(math.Round(raw * 100))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
