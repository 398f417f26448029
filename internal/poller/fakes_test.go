package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/writer"
)

// fakeSource returns scripted snapshots in order, repeating the last one.
type fakeSource struct {
	mu      sync.Mutex
	batches []model.SnapshotBatch
	errs    []error
	calls   int
}

func (s *fakeSource) FetchSnapshot(ctx context.Context) (model.SnapshotBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return model.SnapshotBatch{}, s.errs[i]
	}
	if len(s.batches) == 0 {
		return model.SnapshotBatch{}, errors.New("no snapshot")
	}
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeClock reports a fixed server time.
type fakeClock struct {
	now time.Time
	err error
}

func (c *fakeClock) GetServerTime(context.Context) (time.Time, error) {
	return c.now, c.err
}

// seqClock reports scripted server times in order, repeating the last one.
type seqClock struct {
	mu    sync.Mutex
	times []time.Time
	calls int
}

func (c *seqClock) GetServerTime(context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := min(c.calls, len(c.times)-1)
	c.calls++
	return c.times[i], nil
}

// fakeStore records stored rows.
type fakeStore struct {
	mu       sync.Mutex
	stores   [][]model.HistoricalRow
	existing map[time.Time]bool
	err      error
}

func (s *fakeStore) Store(_ context.Context, rows []model.HistoricalRow) (writer.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return writer.StoreResult{}, s.err
	}
	s.stores = append(s.stores, rows)
	return writer.StoreResult{Inserted: len(rows)}, nil
}

func (s *fakeStore) HasSnapshotOn(_ context.Context, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[model.DayBucket(day)], nil
}

func (s *fakeStore) storeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

// fakePublisher counts ranking refreshes.
type fakePublisher struct {
	mu      sync.Mutex
	batches []model.SnapshotBatch
}

func (p *fakePublisher) ApplyBatch(_ context.Context, b model.SnapshotBatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, b)
	return nil
}

func snapshotClosingAt(closeTime time.Time, symbols ...string) model.SnapshotBatch {
	records := make([]model.TickerRecord, len(symbols))
	for i, s := range symbols {
		records[i] = model.TickerRecord{
			Symbol:             s,
			PriceChangePercent: decimal.NewFromInt(int64(i)),
			LastPrice:          decimal.NewFromInt(100),
			OpenTime:           closeTime.Add(-24 * time.Hour),
			CloseTime:          closeTime,
		}
	}
	return model.NewSnapshotBatch(model.SourceREST, closeTime, records)
}
