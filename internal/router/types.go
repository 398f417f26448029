package router

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tickerwatch/ingester/internal/model"
)

// ErrDecode marks a frame that is not valid JSON of an accepted shape.
var ErrDecode = errors.New("decode frame")

// BatchApplier receives each validated batch.
type BatchApplier interface {
	ApplyBatch(ctx context.Context, batch model.SnapshotBatch) error
}

// Stats contains runtime statistics.
type Stats struct {
	FramesReceived int64
	DecodeErrors   int64
	EmptyFrames    int64 // decoded but no valid records
	BatchesApplied int64
	CacheErrors    int64
	RecordsValid   int64
	Rejected       map[string]int64 // validator.KindOf label -> count
}

// envelope is the combined-stream wrapper.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}
