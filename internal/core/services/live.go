package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	apperrors "github.com/lorrc/team-kpi-backend/internal/core/errors"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

// DefaultDebounce is the quiet period after the last change before a pass runs.
const DefaultDebounce = time.Second

// LiveStats describes the live layer for health reporting.
type LiveStats struct {
	Running     bool                     `json:"running"`
	Window      domain.AggregationWindow `json:"window"`
	Version     uint64                   `json:"version"`
	Passes      uint64                   `json:"passes"`
	Failures    uint64                   `json:"failures"`
	Discarded   uint64                   `json:"discarded"`
	LastError   string                   `json:"lastError,omitempty"`
	LastErrorAt *time.Time               `json:"lastErrorAt,omitempty"`
}

// LiveAggregator re-runs the aggregation pass whenever a watched table changes.
// Bursts of changes are collapsed by a debounce timer, passes never overlap,
// and a change that arrives during a pass always yields one more pass.
type LiveAggregator struct {
	runner   ports.PassRunner
	feed     ports.ChangeFeed
	store    *StateStore
	debounce time.Duration
	logger   *slog.Logger

	signals chan struct{}
	passMu  sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	unsubs  []func()
	running atomic.Bool

	passes    atomic.Uint64
	failures  atomic.Uint64
	discarded atomic.Uint64
}

var _ ports.LiveService = (*LiveAggregator)(nil)

// NewLiveAggregator creates a live aggregator publishing into store.
func NewLiveAggregator(
	runner ports.PassRunner,
	feed ports.ChangeFeed,
	store *StateStore,
	debounce time.Duration,
	logger *slog.Logger,
) *LiveAggregator {
	if debounce < 0 {
		debounce = 0
	}
	return &LiveAggregator{
		runner:   runner,
		feed:     feed,
		store:    store,
		debounce: debounce,
		logger:   logger.With("component", "live_aggregator"),
		signals:  make(chan struct{}, 1),
	}
}

// Start subscribes to every watched table and schedules the first pass.
// The aggregator runs until Stop is called or ctx is cancelled.
func (l *LiveAggregator) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return errors.New("live aggregator already started")
	}

	unsubs := make([]func(), 0, len(domain.WatchedTables()))
	for _, table := range domain.WatchedTables() {
		unsub, err := l.feed.Subscribe(table, l.onChange)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return fmt.Errorf("subscribe to %s: %w", table, err)
		}
		unsubs = append(unsubs, unsub)
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.unsubs = unsubs
	l.done = make(chan struct{})
	l.running.Store(true)
	go l.run(runCtx, l.done)

	l.logger.Info("live aggregation started",
		"tables", len(unsubs),
		"debounce", l.debounce,
	)
	l.Invalidate()
	return nil
}

// Stop unsubscribes from the feed and waits for an in-flight pass to finish.
func (l *LiveAggregator) Stop() {
	l.mu.Lock()
	cancel, done, unsubs := l.cancel, l.done, l.unsubs
	l.cancel, l.done, l.unsubs = nil, nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	for _, u := range unsubs {
		u()
	}
	cancel()
	<-done
	l.running.Store(false)
	l.logger.Info("live aggregation stopped")
}

func (l *LiveAggregator) onChange(ev domain.ChangeEvent) {
	l.logger.Debug("source changed", "table", ev.Table)
	l.Invalidate()
}

// Invalidate marks the published aggregates stale and (re)arms the debounce timer.
func (l *LiveAggregator) Invalidate() {
	select {
	case l.signals <- struct{}{}:
	default:
	}
}

// run owns the debounce timer and the running/pending flags.
func (l *LiveAggregator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		running bool
		pending bool
	)
	results := make(chan struct{}, 1)

	startPass := func() {
		running = true
		go func() {
			l.runAndPublish(ctx)
			results <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if running {
				<-results
			}
			return

		case <-l.signals:
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if running {
				pending = true
				continue
			}
			startPass()

		case <-results:
			running = false
			if pending {
				pending = false
				startPass()
			}
		}
	}
}

// runAndPublish runs one pass over the current window and publishes it.
func (l *LiveAggregator) runAndPublish(ctx context.Context) (*domain.Snapshot, error) {
	l.passMu.Lock()
	defer l.passMu.Unlock()

	window := l.store.Window()
	snapshot, err := l.runner.RunPass(ctx, window)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.failures.Add(1)
		l.store.RecordFailure(err)
		l.logger.Error("aggregation pass failed, keeping previous aggregates",
			"start_date", window.StartDate,
			"end_date", window.EndDate,
			"error", err,
		)
		return nil, err
	}

	published, err := l.store.Publish(*snapshot)
	if errors.Is(err, apperrors.ErrStaleWindow) {
		l.discarded.Add(1)
		l.logger.Debug("discarding pass computed for a replaced window",
			"start_date", window.StartDate,
			"end_date", window.EndDate,
		)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	l.passes.Add(1)
	if published.Partial() {
		l.logger.Warn("published partial aggregates",
			"version", published.Version,
			"failed_sources", len(published.Failures),
		)
	}
	return &published, nil
}

// Refresh runs a pass synchronously and publishes it.
func (l *LiveAggregator) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	return l.runAndPublish(ctx)
}

// SetWindow replaces the live window and schedules a pass when it changed.
func (l *LiveAggregator) SetWindow(window domain.AggregationWindow) error {
	if err := window.Validate(); err != nil {
		return err
	}
	if l.store.SetWindow(window) {
		l.logger.Info("live window changed",
			"start_date", window.StartDate,
			"end_date", window.EndDate,
			"team_lead_id", window.TeamLeadID,
		)
		l.Invalidate()
	}
	return nil
}

// Window returns the current live window.
func (l *LiveAggregator) Window() domain.AggregationWindow {
	return l.store.Window()
}

// Snapshot returns the last published snapshot.
func (l *LiveAggregator) Snapshot() (domain.Snapshot, error) {
	return l.store.Snapshot()
}

// OnAggregateChange registers a listener called with every published snapshot.
func (l *LiveAggregator) OnAggregateChange(listener func(domain.Snapshot)) func() {
	return l.store.Subscribe(listener)
}

// Stats reports counters and the last failure.
func (l *LiveAggregator) Stats() LiveStats {
	stats := LiveStats{
		Running:   l.running.Load(),
		Window:    l.store.Window(),
		Version:   l.store.Version(),
		Passes:    l.passes.Load(),
		Failures:  l.failures.Load(),
		Discarded: l.discarded.Load(),
	}
	if at, err := l.store.LastFailure(); err != nil {
		stats.LastError = err.Error()
		stats.LastErrorAt = &at
	}
	return stats
}
