package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/writer"
)

// HourlyConfig holds hourly poller configuration.
type HourlyConfig struct {
	Timeout time.Duration // Per-poll deadline (default: 30s)
}

// DefaultHourlyConfig returns sensible defaults.
func DefaultHourlyConfig() HourlyConfig {
	return HourlyConfig{Timeout: 30 * time.Second}
}

// HourlyPoller stores a full snapshot at every hour boundary.
type HourlyPoller struct {
	cfg    HourlyConfig
	source SnapshotSource
	store  SnapshotStore
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	polls       atomic.Int64
	fetchErrors atomic.Int64
	storeErrors atomic.Int64
	stored      atomic.Int64
	rowsWritten atomic.Int64
	rowsSkipped atomic.Int64
}

// NewHourlyPoller creates a new HourlyPoller.
func NewHourlyPoller(cfg HourlyConfig, source SnapshotSource, store SnapshotStore, logger *slog.Logger) *HourlyPoller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHourlyConfig().Timeout
	}
	return &HourlyPoller{
		cfg:    cfg,
		source: source,
		store:  store,
		logger: logger.With("component", "hourly_poller"),
		now:    time.Now,
	}
}

// Start begins the polling loop.
func (p *HourlyPoller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("hourly poller started", "next_poll_in", untilNextHour(p.now()))
	return nil
}

// Stop gracefully shuts down the poller.
func (p *HourlyPoller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("hourly poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run waits for each hour boundary and polls.
func (p *HourlyPoller) run() {
	defer p.wg.Done()

	for {
		if !sleep(p.ctx, untilNextHour(p.now())) {
			return
		}
		if _, err := p.PollOnce(p.ctx); err != nil && p.ctx.Err() == nil {
			p.logger.Error("hourly snapshot failed", "error", err)
		}
	}
}

// PollOnce fetches the snapshot and stores it under the current hour.
func (p *HourlyPoller) PollOnce(ctx context.Context) (writer.StoreResult, error) {
	start := p.now()
	dataTime := model.HourBucket(start)
	p.polls.Add(1)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	batch, err := p.source.FetchSnapshot(ctx)
	if err != nil {
		p.fetchErrors.Add(1)
		return writer.StoreResult{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	if batch.Len() == 0 {
		p.logger.Warn("empty snapshot, nothing stored", "data_time", dataTime)
		return writer.StoreResult{}, nil
	}

	res, err := p.store.Store(ctx, model.NewHistoricalRows(batch, dataTime))
	if err != nil {
		p.storeErrors.Add(1)
		return res, fmt.Errorf("store snapshot: %w", err)
	}

	p.stored.Add(1)
	p.rowsWritten.Add(int64(res.Inserted))
	p.rowsSkipped.Add(int64(res.Skipped))

	p.logger.Info("hourly snapshot stored",
		"data_time", dataTime,
		"symbols", batch.Len(),
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
	return res, nil
}

// Stats returns poller counters.
func (p *HourlyPoller) Stats() Stats {
	return Stats{
		Polls:       p.polls.Load(),
		FetchErrors: p.fetchErrors.Load(),
		StoreErrors: p.storeErrors.Load(),
		Stored:      p.stored.Load(),
		RowsWritten: p.rowsWritten.Load(),
		RowsSkipped: p.rowsSkipped.Load(),
	}
}
