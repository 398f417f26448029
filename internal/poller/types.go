package poller

import (
	"context"
	"time"

	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/writer"
)

// SnapshotSource fetches a validated full-market snapshot.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (model.SnapshotBatch, error)
}

// ServerClock reports the exchange's current time.
type ServerClock interface {
	GetServerTime(ctx context.Context) (time.Time, error)
}

// SnapshotStore persists snapshot rows into one table.
type SnapshotStore interface {
	Store(ctx context.Context, rows []model.HistoricalRow) (writer.StoreResult, error)
	HasSnapshotOn(ctx context.Context, day time.Time) (bool, error)
}

// Publisher refreshes the ranking cache.
type Publisher interface {
	ApplyBatch(ctx context.Context, batch model.SnapshotBatch) error
}

// PollState is the rollover detector's view of the current cycle.
type PollState struct {
	CycleID   string
	ServerDay time.Time     // UTC midnight of the day being captured
	Interval  time.Duration // current poll interval
	Attempts  int           // fetches this cycle
	LastPoll  time.Time
	Done      bool // the day's snapshot is stored
}

// Stats holds poller counters.
type Stats struct {
	Cycles      int64
	Polls       int64
	FetchErrors int64
	StoreErrors int64
	Stored      int64 // successful snapshot stores
	RowsWritten int64
	RowsSkipped int64
}
