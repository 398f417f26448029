package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tickerwatch/ingester/internal/model"
)

// RolloverConfig holds rollover detector configuration.
type RolloverConfig struct {
	CheckInterval time.Duration // Upper bound between checks outside the pre-midnight window (default: 1h)
	Timeout       time.Duration // Per-request deadline (default: 30s)
	Intervals     IntervalPolicy
}

// DefaultRolloverConfig returns sensible defaults.
func DefaultRolloverConfig() RolloverConfig {
	return RolloverConfig{
		CheckInterval: time.Hour,
		Timeout:       30 * time.Second,
		Intervals:     DefaultIntervalPolicy(),
	}
}

// RolloverDetector captures one full snapshot per UTC day once the REST
// endpoint's data has rolled over to the server's date. Checks are scheduled
// so that one starts when the MidWindow before UTC midnight opens; that cycle
// waits for the coming day and polls faster as midnight approaches.
type RolloverDetector struct {
	cfg       RolloverConfig
	clock     ServerClock
	source    SnapshotSource
	store     SnapshotStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state PollState

	cycles      atomic.Int64
	polls       atomic.Int64
	fetchErrors atomic.Int64
	storeErrors atomic.Int64
	stored      atomic.Int64
	rowsWritten atomic.Int64
	rowsSkipped atomic.Int64
}

// NewRolloverDetector creates a new RolloverDetector. publisher may be nil.
func NewRolloverDetector(
	cfg RolloverConfig,
	clock ServerClock,
	source SnapshotSource,
	store SnapshotStore,
	publisher Publisher,
	logger *slog.Logger,
) *RolloverDetector {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRolloverConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaults.CheckInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Intervals == (IntervalPolicy{}) {
		cfg.Intervals = defaults.Intervals
	}
	return &RolloverDetector{
		cfg:       cfg,
		clock:     clock,
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "rollover_detector"),
		now:       time.Now,
	}
}

// Start runs a catch-up cycle immediately and then follows nextCheck.
func (d *RolloverDetector) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.run()

	d.logger.Info("rollover detector started",
		"check_interval", d.cfg.CheckInterval,
		"window", d.cfg.Intervals.MidWindow,
	)
	return nil
}

// Stop gracefully shuts down the detector, interrupting any wait.
func (d *RolloverDetector) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("rollover detector stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *RolloverDetector) run() {
	defer d.wg.Done()

	for {
		if err := d.RunCycle(d.ctx); err != nil && d.ctx.Err() == nil {
			d.logger.Error("rollover cycle aborted, retrying on next check", "error", err)
		}

		wait := d.nextCheck(d.now())
		d.logger.Debug("next rollover check", "in", wait)
		if !sleep(d.ctx, wait) {
			return
		}
	}
}

// nextCheck returns the delay before the next cycle: the start of the window
// before UTC midnight, but never more than CheckInterval so failed cycles are
// retried. Inside the window it returns MidInterval.
func (d *RolloverDetector) nextCheck(now time.Time) time.Duration {
	untilWindow := UntilMidnight(now) - d.cfg.Intervals.MidWindow
	if untilWindow <= 0 {
		return d.cfg.Intervals.MidInterval
	}
	return min(untilWindow, d.cfg.CheckInterval)
}

// RunCycle performs one daily check. It returns nil once today's snapshot
// is known to be stored, and an error if the cycle had to be abandoned.
func (d *RolloverDetector) RunCycle(ctx context.Context) error {
	d.cycles.Add(1)
	cycleID := uuid.NewString()
	log := d.logger.With("cycle_id", cycleID)

	serverNow, err := d.serverTime(ctx)
	if err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	day := model.DayBucket(serverNow)
	d.resetState(cycleID, day)

	present, err := d.store.HasSnapshotOn(ctx, day)
	if err != nil {
		return fmt.Errorf("check existing snapshot: %w", err)
	}
	if present {
		if UntilMidnight(serverNow) > d.cfg.Intervals.MidWindow {
			d.markDone()
			log.Debug("daily snapshot already stored", "day", day.Format(time.DateOnly))
			return nil
		}
		// Inside the window before midnight: wait for the coming day.
		day = day.Add(24 * time.Hour)
		d.resetState(cycleID, day)
	}

	log.Info("waiting for day rollover", "day", day.Format(time.DateOnly))

	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			now, err := d.serverTime(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("server time refresh failed, keeping previous day", "error", err)
			} else {
				serverNow = now
			}

			if next := model.DayBucket(serverNow); next.After(day) {
				day = next
				present, err := d.store.HasSnapshotOn(ctx, day)
				if err != nil {
					return fmt.Errorf("check existing snapshot: %w", err)
				}
				if present {
					d.markDone()
					return nil
				}
			}
		}

		interval := d.cfg.Intervals.Select(UntilMidnight(serverNow))
		d.recordAttempt(day, interval, attempt)

		rolled, err := d.poll(ctx, log, day)
		if err != nil {
			return err
		}
		if rolled {
			d.markDone()
			return nil
		}

		if !sleep(ctx, interval) {
			return ctx.Err()
		}
	}
}

// poll fetches once and stores the snapshot if it belongs to day. Fetch
// errors count as not rolled.
func (d *RolloverDetector) poll(ctx context.Context, log *slog.Logger, day time.Time) (bool, error) {
	d.polls.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	batch, err := d.source.FetchSnapshot(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		d.fetchErrors.Add(1)
		log.Warn("snapshot fetch failed, treating as not rolled", "error", err)
		return false, nil
	}

	latest, ok := batch.LatestCloseTime()
	if !ok || !model.SameUTCDay(latest, day) {
		log.Info("snapshot not rolled yet",
			"latest_close", latest,
			"server_day", day.Format(time.DateOnly),
			"interval", d.State().Interval,
		)
		return false, nil
	}

	rows := model.NewHistoricalRows(batch, day)
	res, err := d.store.Store(ctx, rows)
	if err != nil {
		d.storeErrors.Add(1)
		return false, fmt.Errorf("store daily snapshot: %w", err)
	}
	d.stored.Add(1)
	d.rowsWritten.Add(int64(res.Inserted))
	d.rowsSkipped.Add(int64(res.Skipped))

	if d.publisher != nil {
		if err := d.publisher.ApplyBatch(ctx, batch); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("ranking refresh failed", "error", err)
		}
	}

	log.Info("daily snapshot stored",
		"day", day.Format(time.DateOnly),
		"symbols", batch.Len(),
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return true, nil
}

func (d *RolloverDetector) serverTime(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	return d.clock.GetServerTime(ctx)
}

func (d *RolloverDetector) resetState(cycleID string, day time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = PollState{
		CycleID:   cycleID,
		ServerDay: day,
		Interval:  d.cfg.Intervals.BaseInterval,
	}
}

func (d *RolloverDetector) recordAttempt(day time.Time, interval time.Duration, attempt int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.ServerDay = day
	d.state.Interval = interval
	d.state.Attempts = attempt
	d.state.LastPoll = time.Now()
}

func (d *RolloverDetector) markDone() {
	d.mu.Lock()
	d.state.Done = true
	d.mu.Unlock()
}

// State returns a copy of the current poll state.
func (d *RolloverDetector) State() PollState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns detector counters.
func (d *RolloverDetector) Stats() Stats {
	return Stats{
		Cycles:      d.cycles.Load(),
		Polls:       d.polls.Load(),
		FetchErrors: d.fetchErrors.Load(),
		StoreErrors: d.storeErrors.Load(),
		Stored:      d.stored.Load(),
		RowsWritten: d.rowsWritten.Load(),
		RowsSkipped: d.rowsSkipped.Load(),
	}
}
