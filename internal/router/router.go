package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tickerwatch/ingester/internal/connection"
	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/validator"
)

// Router validates stream frames and applies them to the cache. It
// implements connection.FrameHandler.
type Router struct {
	cache  BatchApplier
	logger *slog.Logger

	frames       atomic.Int64
	decodeErrors atomic.Int64
	emptyFrames  atomic.Int64
	batches      atomic.Int64
	cacheErrors  atomic.Int64
	records      atomic.Int64

	mu       sync.Mutex
	rejected map[string]int64
}

var _ connection.FrameHandler = (*Router)(nil)

// New creates a Router that applies batches to cache.
func New(cache BatchApplier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cache:    cache,
		logger:   logger.With("component", "router"),
		rejected: make(map[string]int64),
	}
}

// HandleFrame processes one frame. Errors are logged and counted; the
// stream keeps going.
func (r *Router) HandleFrame(ctx context.Context, msg connection.TimestampedMessage) {
	_ = r.Process(ctx, msg.Data, msg.ReceivedAt)
}

// Process decodes, validates and applies one frame.
func (r *Router) Process(ctx context.Context, data []byte, receivedAt time.Time) error {
	r.frames.Add(1)

	items, err := DecodeFrame(data)
	if err != nil {
		r.decodeErrors.Add(1)
		r.logger.Warn("dropping frame", "error", err, "bytes", len(data))
		return err
	}

	res := validator.ValidateAll(items, validator.StreamSchema)
	if n := res.RejectedCount(); n > 0 {
		r.mu.Lock()
		for kind, c := range res.Rejected {
			r.rejected[kind] += int64(c)
		}
		r.mu.Unlock()
		r.logger.Warn("rejected records",
			"rejected", n,
			"accepted", len(res.Records),
			"first_error", res.FirstErr,
		)
	}

	if len(res.Records) == 0 {
		r.emptyFrames.Add(1)
		return nil
	}

	batch := model.NewSnapshotBatch(model.SourceWS, receivedAt.UTC(), res.Records)
	r.records.Add(int64(batch.Len()))

	if err := r.cache.ApplyBatch(ctx, batch); err != nil {
		r.cacheErrors.Add(1)
		r.logger.Error("cache update failed, batch dropped", "error", err, "records", batch.Len())
		return err
	}
	r.batches.Add(1)
	return nil
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	rejected := make(map[string]int64, len(r.rejected))
	for k, v := range r.rejected {
		rejected[k] = v
	}
	r.mu.Unlock()

	return Stats{
		FramesReceived: r.frames.Load(),
		DecodeErrors:   r.decodeErrors.Load(),
		EmptyFrames:    r.emptyFrames.Load(),
		BatchesApplied: r.batches.Load(),
		CacheErrors:    r.cacheErrors.Load(),
		RecordsValid:   r.records.Load(),
		Rejected:       rejected,
	}
}

// DecodeFrame splits a frame into its raw ticker items. Item contents are
// not inspected.
func DecodeFrame(data []byte) ([]json.RawMessage, error) {
	return decode(data, true)
}

func decode(data []byte, allowEnvelope bool) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrDecode)
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return items, nil

	case '{':
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: invalid json object", ErrDecode)
		}
		if allowEnvelope {
			var env envelope
			if err := json.Unmarshal(data, &env); err == nil && env.Stream != "" && len(env.Data) > 0 {
				return decode(env.Data, false)
			}
		}
		return []json.RawMessage{json.RawMessage(data)}, nil

	default:
		return nil, fmt.Errorf("%w: unexpected frame shape", ErrDecode)
	}
}
