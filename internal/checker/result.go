package checker

import "time"

// Status is the health classification of a monitor.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusSlow    Status = "slow"
	StatusDown    Status = "down"
)

// Classification thresholds in milliseconds.
const (
	SlowThresholdMs = 1000
	DownThresholdMs = 5000
)

// Valid reports whether s is part of the status taxonomy.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusUp, StatusSlow, StatusDown:
		return true
	}
	return false
}

// Classify maps a probe outcome to a status. A failure is always down; a
// success is up below one second, slow below five seconds, and down beyond.
func Classify(success bool, elapsedMs int64) Status {
	switch {
	case !success:
		return StatusDown
	case elapsedMs < SlowThresholdMs:
		return StatusUp
	case elapsedMs < DownThresholdMs:
		return StatusSlow
	default:
		return StatusDown
	}
}

// Outcome is the raw result of a single probe. Elapsed is always set, even
// on failure. Err is empty when Success is true.
type Outcome struct {
	Elapsed time.Duration
	Success bool
	Err     string
}

// Succeeded returns a successful outcome.
func Succeeded(elapsed time.Duration) Outcome {
	return Outcome{Elapsed: elapsed, Success: true}
}

// Failed returns a failed outcome carrying the error text.
func Failed(elapsed time.Duration, err string) Outcome {
	if err == "" {
		err = "probe failed"
	}
	return Outcome{Elapsed: elapsed, Err: err}
}

// ElapsedMs returns the elapsed time in whole milliseconds, never negative.
func (o Outcome) ElapsedMs() int64 {
	ms := o.Elapsed.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// Status classifies the outcome.
func (o Outcome) Status() Status {
	return Classify(o.Success, o.ElapsedMs())
}
