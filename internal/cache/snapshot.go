package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tickerwatch/ingester/internal/model"
)

// ErrCacheWrite wraps any failure to commit a batch to the cache store.
var ErrCacheWrite = errors.New("cache write failed")

// Config holds cache key layout settings.
type Config struct {
	KeyPrefix string // Key namespace (default: "market")
	TopN      int    // Ranking size (default: 20)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "market",
		TopN:      model.DefaultTopN,
	}
}

// Stats holds counters for the cache writer.
type Stats struct {
	Batches int64 // Batches committed
	Records int64 // Detail entries written
	Errors  int64 // Batches dropped on transport errors
	Skipped int64 // Empty batches ignored
}

// SnapshotCache maintains per-symbol detail and the ranking views in Redis.
type SnapshotCache struct {
	cfg    Config
	rdb    redis.UniversalClient
	logger *slog.Logger

	batches atomic.Int64
	records atomic.Int64
	errors  atomic.Int64
	skipped atomic.Int64
}

// New creates a SnapshotCache over an existing Redis client.
func New(cfg Config, rdb redis.UniversalClient, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.TopN <= 0 {
		cfg.TopN = model.DefaultTopN
	}
	return &SnapshotCache{
		cfg:    cfg,
		rdb:    rdb,
		logger: logger,
	}
}

// Key helpers.
func (c *SnapshotCache) detailsKey() string { return c.cfg.KeyPrefix + ":details" }
func (c *SnapshotCache) symbolKey(s string) string {
	return c.cfg.KeyPrefix + ":details:" + s
}
func (c *SnapshotCache) rankingKey() string {
	return fmt.Sprintf("%s:top%d", c.cfg.KeyPrefix, c.cfg.TopN)
}
func (c *SnapshotCache) orderedKey() string { return c.rankingKey() + ":ordered" }
func (c *SnapshotCache) gainersKey() string { return c.cfg.KeyPrefix + ":top_gainers" }
func (c *SnapshotCache) losersKey() string  { return c.cfg.KeyPrefix + ":top_losers" }
func (c *SnapshotCache) gainerKey(s string) string {
	return c.gainersKey() + ":" + s
}
func (c *SnapshotCache) loserKey(s string) string {
	return c.losersKey() + ":" + s
}
func (c *SnapshotCache) updatedKey() string { return c.cfg.KeyPrefix + ":updated_at" }

// maxTxAttempts bounds optimistic retries when another writer replaces the
// gainers or losers views between the read and the commit.
const maxTxAttempts = 3

// ApplyBatch writes every record's detail and replaces all ranking views in a
// single transaction. Symbols absent from the batch keep their previous detail.
// An empty batch is ignored so the ranking is never wiped.
//
// Gainers and losers also get one hash per ranked symbol
// (<prefix>:top_gainers:<symbol>); hashes of the previously ranked symbols
// are deleted in the same transaction.
func (c *SnapshotCache) ApplyBatch(ctx context.Context, batch model.SnapshotBatch) error {
	if batch.Len() == 0 {
		c.skipped.Add(1)
		return nil
	}

	start := time.Now()

	details := make([]any, 0, 2*batch.Len())
	for _, r := range batch.Records {
		data, err := json.Marshal(toDetail(r))
		if err != nil {
			c.errors.Add(1)
			return fmt.Errorf("%w: encode %s: %v", ErrCacheWrite, r.Symbol, err)
		}
		details = append(details, r.Symbol, data)
	}

	top := model.BuildRanking(batch, c.cfg.TopN)
	losers := model.BuildLosers(batch, c.cfg.TopN)

	ordered := make([]any, len(top))
	for i, e := range top {
		data, err := json.Marshal(e)
		if err != nil {
			c.errors.Add(1)
			return fmt.Errorf("%w: encode ranking: %v", ErrCacheWrite, err)
		}
		ordered[i] = data
	}

	fields := make(map[string]map[string]any, batch.Len())
	for _, r := range batch.Records {
		fields[r.Symbol] = entryFields(r)
	}

	apply := func(tx *redis.Tx) error {
		stale, err := c.rankedEntryKeys(ctx, tx)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, c.detailsKey(), details...)
			for _, r := range batch.Records {
				pipe.HSet(ctx, c.symbolKey(r.Symbol), symbolFields(r))
			}

			pipe.Del(ctx, append(stale, c.rankingKey(), c.orderedKey(), c.gainersKey(), c.losersKey())...)
			pipe.ZAdd(ctx, c.rankingKey(), zMembers(top)...)
			pipe.RPush(ctx, c.orderedKey(), ordered...)
			pipe.ZAdd(ctx, c.gainersKey(), zMembers(top)...)
			pipe.ZAdd(ctx, c.losersKey(), zMembers(losers)...)
			for _, e := range top {
				pipe.HSet(ctx, c.gainerKey(e.Symbol), fields[e.Symbol])
			}
			for _, e := range losers {
				pipe.HSet(ctx, c.loserKey(e.Symbol), fields[e.Symbol])
			}

			pipe.Set(ctx, c.updatedKey(), batch.ReceivedAt.UnixMilli(), 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = c.rdb.Watch(ctx, apply, c.gainersKey(), c.losersKey())
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		c.logger.Debug("ranking changed concurrently, retrying", "attempt", attempt)
	}
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}

	c.batches.Add(1)
	c.records.Add(int64(batch.Len()))

	c.logger.Debug("applied batch",
		"source", batch.Source,
		"records", batch.Len(),
		"ranked", len(top),
		"duration", time.Since(start),
	)
	return nil
}

// rankedEntryKeys returns the per-symbol hash keys of the current gainers and
// losers views.
func (c *SnapshotCache) rankedEntryKeys(ctx context.Context, tx *redis.Tx) ([]string, error) {
	gainers, err := tx.ZRange(ctx, c.gainersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read gainers: %w", err)
	}
	losers, err := tx.ZRange(ctx, c.losersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read losers: %w", err)
	}

	keys := make([]string, 0, len(gainers)+len(losers))
	for _, s := range gainers {
		keys = append(keys, c.gainerKey(s))
	}
	for _, s := range losers {
		keys = append(keys, c.loserKey(s))
	}
	return keys, nil
}

func zMembers(view model.RankingView) []redis.Z {
	out := make([]redis.Z, len(view))
	for i, e := range view {
		out[i] = redis.Z{Score: e.PercentChange.InexactFloat64(), Member: e.Symbol}
	}
	return out
}

// Ranking reads the combined ranking in rank order.
func (c *SnapshotCache) Ranking(ctx context.Context) (model.RankingView, error) {
	items, err := c.rdb.LRange(ctx, c.orderedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ranking: %w", err)
	}

	view := make(model.RankingView, 0, len(items))
	for _, item := range items {
		var e model.RankEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode ranking entry: %w", err)
		}
		view = append(view, e)
	}
	return view, nil
}

// Losers reads the losers view, most negative first.
func (c *SnapshotCache) Losers(ctx context.Context) (model.RankingView, error) {
	zs, err := c.rdb.ZRangeWithScores(ctx, c.losersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read losers: %w", err)
	}
	view := make(model.RankingView, 0, len(zs))
	for _, z := range zs {
		sym, _ := z.Member.(string)
		view = append(view, model.RankEntry{Symbol: sym, PercentChange: decimalFromScore(z.Score)})
	}
	return view, nil
}

// Detail reads the latest record for a symbol.
func (c *SnapshotCache) Detail(ctx context.Context, symbol string) (model.TickerRecord, bool, error) {
	data, err := c.rdb.HGet(ctx, c.detailsKey(), symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.TickerRecord{}, false, nil
	}
	if err != nil {
		return model.TickerRecord{}, false, fmt.Errorf("read detail %s: %w", symbol, err)
	}

	var d detailJSON
	if err := json.Unmarshal(data, &d); err != nil {
		return model.TickerRecord{}, false, fmt.Errorf("decode detail %s: %w", symbol, err)
	}
	return d.record(), true, nil
}

// UpdatedAt returns when the last batch was applied, or zero if never.
func (c *SnapshotCache) UpdatedAt(ctx context.Context) (time.Time, error) {
	s, err := c.rdb.Get(ctx, c.updatedKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read updated_at: %w", err)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Ping verifies the cache store is reachable.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Stats returns current counters.
func (c *SnapshotCache) Stats() Stats {
	return Stats{
		Batches: c.batches.Load(),
		Records: c.records.Load(),
		Errors:  c.errors.Load(),
		Skipped: c.skipped.Load(),
	}
}
