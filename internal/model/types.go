package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch sources.
const (
	SourceWS   = "ws"
	SourceREST = "rest"
)

// TickerRecord is one symbol's 24-hour rolling statistics at one moment.
type TickerRecord struct {
	Symbol    string
	EventType string    // Live feed only (e.g. "24hrTicker")
	EventTime time.Time // Live feed only; zero for REST records

	PriceChange        decimal.Decimal
	PriceChangePercent decimal.Decimal
	WeightedAvgPrice   decimal.Decimal
	PrevClosePrice     decimal.Decimal
	LastPrice          decimal.Decimal
	LastQty            decimal.Decimal
	BidPrice           decimal.Decimal
	BidQty             decimal.Decimal
	AskPrice           decimal.Decimal
	AskQty             decimal.Decimal
	OpenPrice          decimal.Decimal
	HighPrice          decimal.Decimal
	LowPrice           decimal.Decimal
	Volume             decimal.Decimal
	QuoteVolume        decimal.Decimal

	OpenTime  time.Time
	CloseTime time.Time

	FirstTradeID int64
	LastTradeID  int64
	TradeCount   int64
}

// SnapshotBatch is the market state produced by one feed frame or one REST call.
// Symbols are unique within a batch.
type SnapshotBatch struct {
	Source     string
	ReceivedAt time.Time
	Records    []TickerRecord
}

// NewSnapshotBatch builds a batch from records in arrival order. A symbol seen
// more than once keeps the position of its first occurrence and the values of
// its last one.
func NewSnapshotBatch(source string, receivedAt time.Time, records []TickerRecord) SnapshotBatch {
	index := make(map[string]int, len(records))
	out := make([]TickerRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.Symbol]; ok {
			out[i] = r
			continue
		}
		index[r.Symbol] = len(out)
		out = append(out, r)
	}
	return SnapshotBatch{
		Source:     source,
		ReceivedAt: receivedAt,
		Records:    out,
	}
}

// Len returns the number of records in the batch.
func (b SnapshotBatch) Len() int {
	return len(b.Records)
}

// LatestCloseTime returns the most recent close time in the batch.
func (b SnapshotBatch) LatestCloseTime() (time.Time, bool) {
	var latest time.Time
	for _, r := range b.Records {
		if r.CloseTime.After(latest) {
			latest = r.CloseTime
		}
	}
	return latest, !latest.IsZero()
}

// HistoricalRow is one durable snapshot row, unique on (Symbol, DataTime).
type HistoricalRow struct {
	Symbol             string
	PriceChange        decimal.Decimal
	PriceChangePercent decimal.Decimal
	WeightedAvgPrice   decimal.Decimal
	LastPrice          decimal.Decimal
	LastQty            decimal.Decimal
	BidPrice           decimal.Decimal
	BidQty             decimal.Decimal
	AskPrice           decimal.Decimal
	AskQty             decimal.Decimal
	OpenPrice          decimal.Decimal
	HighPrice          decimal.Decimal
	LowPrice           decimal.Decimal
	Volume             decimal.Decimal
	QuoteVolume        decimal.Decimal
	OpenTime           time.Time
	CloseTime          time.Time
	FirstID            int64
	LastID             int64
	Count              int64
	DataTime           time.Time // Normalized bucket (hour or UTC day)
}

// NewHistoricalRows converts a batch into durable rows stamped with dataTime.
func NewHistoricalRows(batch SnapshotBatch, dataTime time.Time) []HistoricalRow {
	rows := make([]HistoricalRow, len(batch.Records))
	for i, r := range batch.Records {
		rows[i] = HistoricalRow{
			Symbol:             r.Symbol,
			PriceChange:        r.PriceChange,
			PriceChangePercent: r.PriceChangePercent,
			WeightedAvgPrice:   r.WeightedAvgPrice,
			LastPrice:          r.LastPrice,
			LastQty:            r.LastQty,
			BidPrice:           r.BidPrice,
			BidQty:             r.BidQty,
			AskPrice:           r.AskPrice,
			AskQty:             r.AskQty,
			OpenPrice:          r.OpenPrice,
			HighPrice:          r.HighPrice,
			LowPrice:           r.LowPrice,
			Volume:             r.Volume,
			QuoteVolume:        r.QuoteVolume,
			OpenTime:           r.OpenTime,
			CloseTime:          r.CloseTime,
			FirstID:            r.FirstTradeID,
			LastID:             r.LastTradeID,
			Count:              r.TradeCount,
			DataTime:           dataTime,
		}
	}
	return rows
}

// HourBucket truncates t to the top of its UTC hour.
func HourBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// DayBucket truncates t to UTC midnight.
func DayBucket(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDay reports whether a and b fall on the same UTC calendar date.
func SameUTCDay(a, b time.Time) bool {
	return DayBucket(a).Equal(DayBucket(b))
}
