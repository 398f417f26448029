package validator

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tickerwatch/ingester/internal/model"
)

// Validate maps a decoded ticker object onto a TickerRecord. It fails with a
// *ValidationError wrapping ErrMissingField or ErrTypeMismatch.
func Validate(raw map[string]json.RawMessage, s Schema) (model.TickerRecord, error) {
	var rec model.TickerRecord

	for _, key := range s.RequiredKeys() {
		if _, ok := raw[key]; !ok {
			return rec, missing(key)
		}
	}

	if s.EventType != "" {
		v, err := stringField(raw, s.EventType)
		if err != nil {
			return rec, err
		}
		rec.EventType = v
	}

	if s.EventTime != "" {
		ts, err := timeField(raw, s.EventTime)
		if err != nil {
			return rec, err
		}
		rec.EventTime = ts
	}

	symbol, err := stringField(raw, s.Symbol)
	if err != nil {
		return rec, err
	}
	if symbol == "" {
		return rec, missing(s.Symbol)
	}
	rec.Symbol = strings.ToUpper(symbol)

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{s.PriceChange, &rec.PriceChange},
		{s.PriceChangePercent, &rec.PriceChangePercent},
		{s.WeightedAvgPrice, &rec.WeightedAvgPrice},
		{s.PrevClosePrice, &rec.PrevClosePrice},
		{s.LastPrice, &rec.LastPrice},
		{s.LastQty, &rec.LastQty},
		{s.BidPrice, &rec.BidPrice},
		{s.BidQty, &rec.BidQty},
		{s.AskPrice, &rec.AskPrice},
		{s.AskQty, &rec.AskQty},
		{s.OpenPrice, &rec.OpenPrice},
		{s.HighPrice, &rec.HighPrice},
		{s.LowPrice, &rec.LowPrice},
		{s.Volume, &rec.Volume},
		{s.QuoteVolume, &rec.QuoteVolume},
	}
	for _, d := range decimals {
		if d.key == "" {
			continue
		}
		v, err := decimalField(raw, d.key)
		if err != nil {
			return rec, err
		}
		*d.dst = v
	}

	if rec.OpenTime, err = timeField(raw, s.OpenTime); err != nil {
		return rec, err
	}
	if rec.CloseTime, err = timeField(raw, s.CloseTime); err != nil {
		return rec, err
	}
	if rec.FirstTradeID, err = intField(raw, s.FirstTradeID); err != nil {
		return rec, err
	}
	if rec.LastTradeID, err = intField(raw, s.LastTradeID); err != nil {
		return rec, err
	}
	if rec.TradeCount, err = intField(raw, s.TradeCount); err != nil {
		return rec, err
	}

	return rec, nil
}

// Result holds the outcome of validating a list of raw items.
type Result struct {
	Records  []model.TickerRecord
	Rejected map[string]int // KindOf label → count
	FirstErr error
}

// RejectedCount returns the total number of dropped items.
func (r Result) RejectedCount() int {
	n := 0
	for _, c := range r.Rejected {
		n += c
	}
	return n
}

// ValidateAll validates every item independently. Invalid items are counted
// and dropped; they never abort the rest of the list.
func ValidateAll(items []json.RawMessage, s Schema) Result {
	res := Result{
		Records:  make([]model.TickerRecord, 0, len(items)),
		Rejected: make(map[string]int),
	}

	for _, item := range items {
		rec, err := validateItem(item, s)
		if err != nil {
			res.Rejected[KindOf(err)]++
			if res.FirstErr == nil {
				res.FirstErr = err
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res
}

func validateItem(item json.RawMessage, s Schema) (model.TickerRecord, error) {
	item = bytes.TrimSpace(item)
	if len(item) == 0 || item[0] != '{' {
		return model.TickerRecord{}, mismatch("$", "record is not an object")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(item, &raw); err != nil {
		return model.TickerRecord{}, mismatch("$", err.Error())
	}
	return Validate(raw, s)
}

func stringField(raw map[string]json.RawMessage, key string) (string, error) {
	v := bytes.TrimSpace(raw[key])
	if len(v) == 0 || v[0] != '"' {
		return "", mismatch(key, "expected string")
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", mismatch(key, err.Error())
	}
	return s, nil
}

func intField(raw map[string]json.RawMessage, key string) (int64, error) {
	v := bytes.TrimSpace(raw[key])
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, mismatch(key, "expected integer")
	}
	return n, nil
}

func timeField(raw map[string]json.RawMessage, key string) (time.Time, error) {
	ms, err := intField(raw, key)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// decimalField accepts a JSON string or number holding a finite decimal.
func decimalField(raw map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	v := bytes.TrimSpace(raw[key])
	if len(v) == 0 {
		return decimal.Zero, mismatch(key, "empty value")
	}

	text := string(v)
	switch {
	case v[0] == '"':
		if err := json.Unmarshal(v, &text); err != nil {
			return decimal.Zero, mismatch(key, err.Error())
		}
	case v[0] == '-' || (v[0] >= '0' && v[0] <= '9'):
	default:
		return decimal.Zero, mismatch(key, "expected decimal string or number")
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, mismatch(key, "not a decimal")
	}
	return d, nil
}
