package stats

import (
	"sort"
	"time"

	"github.com/hazz-dev/uptimekit/internal/checker"
)

// Chart bucket widths.
const (
	FleetBucketWidth   = time.Hour
	MonitorBucketWidth = 10 * time.Minute
)

// Sample is one check record as seen by the series functions.
type Sample struct {
	Status     checker.Status
	ResponseMs int64
	CheckedAt  time.Time
}

// Bucket is one point of a chart series.
type Bucket struct {
	Time          time.Time `json:"time"`
	Uptime        float64   `json:"uptime"`
	AvgResponseMs float64   `json:"avg_response_ms"`
	Count         int       `json:"count"`
}

// BucketRecords groups samples into fixed-width UTC buckets and returns them
// ordered by time. Uptime is the mean of 100 for up samples and 0 otherwise.
func BucketRecords(samples []Sample, width time.Duration) []Bucket {
	if width <= 0 {
		width = FleetBucketWidth
	}

	type acc struct {
		up, n int
		resp  int64
	}
	byStart := make(map[time.Time]*acc)
	var order []time.Time
	for _, s := range samples {
		start := s.CheckedAt.UTC().Truncate(width)
		a, ok := byStart[start]
		if !ok {
			a = &acc{}
			byStart[start] = a
			order = append(order, start)
		}
		a.n++
		a.resp += s.ResponseMs
		if s.Status == checker.StatusUp {
			a.up++
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	buckets := make([]Bucket, 0, len(order))
	for _, start := range order {
		a := byStart[start]
		buckets = append(buckets, Bucket{
			Time:          start,
			Uptime:        RoundTo(float64(a.up)*100/float64(a.n), 2),
			AvgResponseMs: RoundTo(float64(a.resp)/float64(a.n), 2),
			Count:         a.n,
		})
	}
	return buckets
}

// Downtime is a maximal run of consecutive down checks.
type Downtime struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"-"`
	Seconds  int64         `json:"duration"`
	Ongoing  bool          `json:"ongoing"`
}

// Downtimes finds downtime periods in samples ordered oldest first. A period
// ends at the first following check that is not down; a period still open
// at the last sample is ongoing and ends at its last down check. The result
// is ordered most recent first.
func Downtimes(samples []Sample) []Downtime {
	var (
		out      []Downtime
		open     bool
		start    time.Time
		lastDown time.Time
	)
	closeRun := func(end time.Time, ongoing bool) {
		d := end.Sub(start)
		out = append(out, Downtime{
			Start:    start,
			End:      end,
			Duration: d,
			Seconds:  int64(d / time.Second),
			Ongoing:  ongoing,
		})
		open = false
	}

	for _, s := range samples {
		if s.Status == checker.StatusDown {
			if !open {
				open = true
				start = s.CheckedAt
			}
			lastDown = s.CheckedAt
			continue
		}
		if open {
			closeRun(s.CheckedAt, false)
		}
	}
	if open {
		closeRun(lastDown, true)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
