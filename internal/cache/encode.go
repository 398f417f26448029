package cache

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tickerwatch/ingester/internal/model"
)

// detailJSON is the serialized form of a record, using the stream's compact keys
// so existing readers of the details hash keep working.
type detailJSON struct {
	EventType          string          `json:"e,omitempty"`
	EventTime          int64           `json:"E,omitempty"`
	Symbol             string          `json:"s"`
	PriceChange        decimal.Decimal `json:"p"`
	PriceChangePercent decimal.Decimal `json:"P"`
	WeightedAvgPrice   decimal.Decimal `json:"w"`
	PrevClosePrice     decimal.Decimal `json:"x"`
	LastPrice          decimal.Decimal `json:"c"`
	LastQty            decimal.Decimal `json:"Q"`
	BidPrice           decimal.Decimal `json:"b"`
	BidQty             decimal.Decimal `json:"B"`
	AskPrice           decimal.Decimal `json:"a"`
	AskQty             decimal.Decimal `json:"A"`
	OpenPrice          decimal.Decimal `json:"o"`
	HighPrice          decimal.Decimal `json:"h"`
	LowPrice           decimal.Decimal `json:"l"`
	Volume             decimal.Decimal `json:"v"`
	QuoteVolume        decimal.Decimal `json:"q"`
	OpenTime           int64           `json:"O"`
	CloseTime          int64           `json:"C"`
	FirstTradeID       int64           `json:"F"`
	LastTradeID        int64           `json:"L"`
	TradeCount         int64           `json:"n"`
}

func toDetail(r model.TickerRecord) detailJSON {
	return detailJSON{
		EventType:          r.EventType,
		EventTime:          unixMilli(r.EventTime),
		Symbol:             r.Symbol,
		PriceChange:        r.PriceChange,
		PriceChangePercent: r.PriceChangePercent,
		WeightedAvgPrice:   r.WeightedAvgPrice,
		PrevClosePrice:     r.PrevClosePrice,
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
		OpenTime:           unixMilli(r.OpenTime),
		CloseTime:          unixMilli(r.CloseTime),
		FirstTradeID:       r.FirstTradeID,
		LastTradeID:        r.LastTradeID,
		TradeCount:         r.TradeCount,
	}
}

func (d detailJSON) record() model.TickerRecord {
	return model.TickerRecord{
		Symbol:             d.Symbol,
		EventType:          d.EventType,
		EventTime:          fromUnixMilli(d.EventTime),
		PriceChange:        d.PriceChange,
		PriceChangePercent: d.PriceChangePercent,
		WeightedAvgPrice:   d.WeightedAvgPrice,
		PrevClosePrice:     d.PrevClosePrice,
		LastPrice:          d.LastPrice,
		LastQty:            d.LastQty,
		BidPrice:           d.BidPrice,
		BidQty:             d.BidQty,
		AskPrice:           d.AskPrice,
		AskQty:             d.AskQty,
		OpenPrice:          d.OpenPrice,
		HighPrice:          d.HighPrice,
		LowPrice:           d.LowPrice,
		Volume:             d.Volume,
		QuoteVolume:        d.QuoteVolume,
		OpenTime:           fromUnixMilli(d.OpenTime),
		CloseTime:          fromUnixMilli(d.CloseTime),
		FirstTradeID:       d.FirstTradeID,
		LastTradeID:        d.LastTradeID,
		TradeCount:         d.TradeCount,
	}
}

// symbolFields is the flat hash written under <prefix>:details:<symbol>.
func symbolFields(r model.TickerRecord) map[string]any {
	return map[string]any{
		"s": r.Symbol,
		"c": r.LastPrice.String(),
		"P": r.PriceChangePercent.String(),
		"p": r.PriceChange.String(),
		"h": r.HighPrice.String(),
		"l": r.LowPrice.String(),
		"v": r.Volume.String(),
		"q": r.QuoteVolume.String(),
		"C": unixMilli(r.CloseTime),
	}
}

// entryFields is the hash written under <prefix>:top_gainers:<symbol> and
// <prefix>:top_losers:<symbol>.
func entryFields(r model.TickerRecord) map[string]any {
	return map[string]any{
		"change_percent": r.PriceChangePercent.String(),
		"last_price":     r.LastPrice.String(),
		"volume":         r.Volume.String(),
		"quote_volume":   r.QuoteVolume.String(),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func decimalFromScore(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
