package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/hazz-dev/uptimekit/internal/checker"
	"github.com/hazz-dev/uptimekit/internal/metrics"
	"github.com/hazz-dev/uptimekit/internal/storage"
)

const (
	DefaultInterval      = time.Minute
	DefaultMaxConcurrent = 64
)

// Store defines the storage operations required by the scheduler.
type Store interface {
	ListMonitors(ctx context.Context) ([]storage.Monitor, error)
	WriteCheckResult(ctx context.Context, r storage.CheckResult) error
}

// ProberFactory returns the probe driver for a monitor type.
type ProberFactory func(checker.Type) checker.Prober

// NewProberFactory returns a ProberFactory backed by checker.New.
func NewProberFactory(opts checker.Options) ProberFactory {
	return func(t checker.Type) checker.Prober {
		return checker.New(t, opts)
	}
}

// Options configures a Scheduler. Zero values select the defaults.
type Options struct {
	Interval      time.Duration
	MaxConcurrent int
}

// Result describes one completed check. Err is set when the result could
// not be stored.
type Result struct {
	Monitor   storage.Monitor
	Outcome   checker.Outcome
	Status    checker.Status
	CheckedAt time.Time
	Err       error
}

// Report summarises one scheduling tick.
type Report struct {
	ID         string        `json:"id"`
	Total      int           `json:"total"`
	Paused     int           `json:"paused"`
	Skipped    int           `json:"skipped"`
	Dispatched int           `json:"dispatched"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// Scheduler probes every active monitor once per tick.
type Scheduler struct {
	store    Store
	factory  ProberFactory
	opts     Options
	onResult func(Result)
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[int64]struct{}

	wg sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use slog.Default.
func New(store Store, factory ProberFactory, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Scheduler{
		store:    store,
		factory:  factory,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[int64]struct{}),
	}
}

// SetOnResult sets the callback invoked after each check. It must be called
// before Start.
func (s *Scheduler) SetOnResult(fn func(Result)) {
	s.onResult = fn
}

// Start runs a tick immediately and then every Interval until ctx is
// cancelled. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the tick loop and all ticks it started have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.spawnTick(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.spawnTick(ctx)
		}
	}
}

// spawnTick runs a tick in its own goroutine so that a slow tick does not
// delay the next one. Monitors still in flight are skipped by later ticks.
func (s *Scheduler) spawnTick(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Tick(ctx)
	}()
}

// Tick runs one scheduling tick: it loads all monitors, probes every active
// monitor that is not already being probed, and waits for those probes to
// settle.
func (s *Scheduler) Tick(ctx context.Context) Report {
	start := time.Now()
	rep := Report{ID: uuid.NewString()}
	logger := s.logger.With("tick", rep.ID)

	monitors, err := s.store.ListMonitors(ctx)
	if err != nil {
		metrics.RecordStoreError("list_monitors")
		logger.Error("loading monitors", "error", err)
		rep.Duration = time.Since(start)
		return rep
	}
	rep.Total = len(monitors)

	var failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.opts.MaxConcurrent)
	for _, m := range monitors {
		if m.Paused {
			rep.Paused++
			continue
		}
		if !s.acquire(m.ID) {
			rep.Skipped++
			logger.Debug("monitor still in flight", "monitor", m.ID)
			continue
		}
		rep.Dispatched++
		m := m
		p.Go(func() {
			defer s.release(m.ID)
			if err := s.runCheck(ctx, logger, m); err != nil {
				failed.Add(1)
			}
		})
	}
	p.Wait()

	rep.Failed = int(failed.Load())
	rep.Duration = time.Since(start)
	metrics.RecordTick(rep.Duration)

	logger.Info("tick complete",
		"total", rep.Total,
		"dispatched", rep.Dispatched,
		"paused", rep.Paused,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"duration", rep.Duration,
	)
	return rep
}

func (s *Scheduler) acquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id int64) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Scheduler) runCheck(ctx context.Context, logger *slog.Logger, m storage.Monitor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("check panicked", "monitor", m.ID, "panic", r)
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()

	outcome := s.probe(ctx, m)
	if ctx.Err() != nil {
		// Abandoned tick: a cancelled probe says nothing about the target.
		return ctx.Err()
	}

	status := outcome.Status()
	checkedAt := s.now().UTC()

	logger.Info("check result",
		"monitor", m.ID,
		"name", m.Name,
		"type", m.Type,
		"status", status,
		"response_ms", outcome.ElapsedMs(),
		"error", outcome.Err,
	)
	metrics.RecordCheck(m.Type, status, outcome.Elapsed)

	err = s.store.WriteCheckResult(ctx, storage.CheckResult{
		MonitorID:  m.ID,
		Status:     status,
		ResponseMs: outcome.ElapsedMs(),
		Error:      outcome.Err,
		CheckedAt:  checkedAt,
	})
	if err != nil {
		metrics.RecordStoreError("write_check")
		if errors.Is(err, storage.ErrNotFound) {
			logger.Warn("monitor deleted during check", "monitor", m.ID)
		} else {
			logger.Error("storing check result", "monitor", m.ID, "error", err)
		}
	}
	// A deleted monitor must not get its status series back.
	if !errors.Is(err, storage.ErrNotFound) {
		metrics.SetMonitorStatus(strconv.FormatInt(m.ID, 10), m.Type, status)
	}

	if s.onResult != nil {
		s.onResult(Result{
			Monitor:   m,
			Outcome:   outcome,
			Status:    status,
			CheckedAt: checkedAt,
			Err:       err,
		})
	}
	return err
}

// probe runs the driver for m, converting a panic into a failed outcome.
func (s *Scheduler) probe(ctx context.Context, m storage.Monitor) (out checker.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = checker.Failed(time.Since(start), fmt.Sprintf("probe panic: %v", r))
		}
	}()
	return s.factory(m.Type).Probe(ctx, m.Target)
}
