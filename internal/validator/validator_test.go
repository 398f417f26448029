package validator

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const validStreamTicker = `{
	"e": "24hrTicker", "E": 1705320000123, "s": "BTCUSDT",
	"p": "-150.20", "P": "-0.357", "w": "42100.5", "x": "42050.00",
	"c": "41900.10", "Q": "0.010", "b": "41900.00", "B": "1.5",
	"a": "41900.20", "A": "2.0", "o": "42050.30", "h": "42500.00",
	"l": "41800.00", "v": "12345.678", "q": "519876543.21",
	"O": 1705233600000, "C": 1705320000000, "F": 100, "L": 200, "n": 101
}`

const validRESTTicker = `{
	"symbol": "ETHUSDT", "priceChange": "12.5", "priceChangePercent": "0.52",
	"weightedAvgPrice": "2400.1", "prevClosePrice": "2390.0", "lastPrice": "2402.5",
	"lastQty": "0.5", "bidPrice": "2402.4", "bidQty": "3", "askPrice": "2402.6",
	"askQty": "4", "openPrice": "2390.0", "highPrice": "2410", "lowPrice": "2380",
	"volume": "100000", "quoteVolume": "240000000",
	"openTime": 1705233600000, "closeTime": 1705320000000,
	"firstId": -1, "lastId": -1, "count": 0
}`

func decode(t *testing.T, s string) map[string]json.RawMessage {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return raw
}

func TestValidate_Stream(t *testing.T) {
	rec, err := Validate(decode(t, validStreamTicker), StreamSchema)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if rec.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", rec.Symbol)
	}
	if rec.EventType != "24hrTicker" {
		t.Errorf("EventType = %q, want 24hrTicker", rec.EventType)
	}
	if !rec.EventTime.Equal(time.UnixMilli(1705320000123)) {
		t.Errorf("EventTime = %v, want %v", rec.EventTime, time.UnixMilli(1705320000123))
	}
	if !rec.PriceChangePercent.Equal(decimal.RequireFromString("-0.357")) {
		t.Errorf("PriceChangePercent = %s, want -0.357", rec.PriceChangePercent)
	}
	if !rec.PrevClosePrice.Equal(decimal.RequireFromString("42050")) {
		t.Errorf("PrevClosePrice = %s, want 42050", rec.PrevClosePrice)
	}
	if rec.CloseTime.Location() != time.UTC {
		t.Errorf("CloseTime location = %v, want UTC", rec.CloseTime.Location())
	}
	if rec.FirstTradeID != 100 || rec.LastTradeID != 200 || rec.TradeCount != 101 {
		t.Errorf("trade ids = (%d, %d, %d), want (100, 200, 101)", rec.FirstTradeID, rec.LastTradeID, rec.TradeCount)
	}
}

func TestValidate_REST(t *testing.T) {
	rec, err := Validate(decode(t, validRESTTicker), RESTSchema)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if rec.Symbol != "ETHUSDT" {
		t.Errorf("Symbol = %q, want ETHUSDT", rec.Symbol)
	}
	if !rec.EventTime.IsZero() {
		t.Errorf("EventTime = %v, want zero for REST records", rec.EventTime)
	}
	if rec.FirstTradeID != -1 {
		t.Errorf("FirstTradeID = %d, want -1", rec.FirstTradeID)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]json.RawMessage)
		wantKind  error
		wantField string
	}{
		{
			name:      "missing symbol",
			mutate:    func(m map[string]json.RawMessage) { delete(m, "s") },
			wantKind:  ErrMissingField,
			wantField: "s",
		},
		{
			name:      "missing trade count",
			mutate:    func(m map[string]json.RawMessage) { delete(m, "n") },
			wantKind:  ErrMissingField,
			wantField: "n",
		},
		{
			name:      "empty symbol",
			mutate:    func(m map[string]json.RawMessage) { m["s"] = json.RawMessage(`""`) },
			wantKind:  ErrMissingField,
			wantField: "s",
		},
		{
			name:      "event time as string",
			mutate:    func(m map[string]json.RawMessage) { m["E"] = json.RawMessage(`"1705320000123"`) },
			wantKind:  ErrTypeMismatch,
			wantField: "E",
		},
		{
			name:      "event time as float",
			mutate:    func(m map[string]json.RawMessage) { m["E"] = json.RawMessage(`1705320000.5`) },
			wantKind:  ErrTypeMismatch,
			wantField: "E",
		},
		{
			name:      "symbol as number",
			mutate:    func(m map[string]json.RawMessage) { m["s"] = json.RawMessage(`42`) },
			wantKind:  ErrTypeMismatch,
			wantField: "s",
		},
		{
			name:      "price as object",
			mutate:    func(m map[string]json.RawMessage) { m["c"] = json.RawMessage(`{"v":1}`) },
			wantKind:  ErrTypeMismatch,
			wantField: "c",
		},
		{
			name:      "price as null",
			mutate:    func(m map[string]json.RawMessage) { m["c"] = json.RawMessage(`null`) },
			wantKind:  ErrTypeMismatch,
			wantField: "c",
		},
		{
			name:      "price not a decimal",
			mutate:    func(m map[string]json.RawMessage) { m["P"] = json.RawMessage(`"abc"`) },
			wantKind:  ErrTypeMismatch,
			wantField: "P",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, validStreamTicker)
			tt.mutate(raw)

			_, err := Validate(raw, StreamSchema)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantKind)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidate_NoRangeChecks(t *testing.T) {
	raw := decode(t, validStreamTicker)
	raw["P"] = json.RawMessage(`"-99.99"`)
	raw["c"] = json.RawMessage(`0.00000001`)
	raw["s"] = json.RawMessage(`"pepeusdt"`)

	rec, err := Validate(raw, StreamSchema)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !rec.PriceChangePercent.Equal(decimal.RequireFromString("-99.99")) {
		t.Errorf("PriceChangePercent = %s, want -99.99", rec.PriceChangePercent)
	}
	if !rec.LastPrice.Equal(decimal.RequireFromString("0.00000001")) {
		t.Errorf("LastPrice = %s, want 0.00000001", rec.LastPrice)
	}
	if rec.Symbol != "PEPEUSDT" {
		t.Errorf("Symbol = %q, want PEPEUSDT", rec.Symbol)
	}
}

func TestValidateAll(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(validStreamTicker),
		json.RawMessage(`{"e": "24hrTicker", "s": "ETHUSDT"}`),
		json.RawMessage(`"not an object"`),
	}

	res := ValidateAll(items, StreamSchema)

	if len(res.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(res.Records))
	}
	if res.Records[0].Symbol != "BTCUSDT" {
		t.Errorf("Records[0].Symbol = %q, want BTCUSDT", res.Records[0].Symbol)
	}
	if res.Rejected["missing_field"] != 1 {
		t.Errorf("Rejected[missing_field] = %d, want 1", res.Rejected["missing_field"])
	}
	if res.Rejected["type_mismatch"] != 1 {
		t.Errorf("Rejected[type_mismatch] = %d, want 1", res.Rejected["type_mismatch"])
	}
	if res.RejectedCount() != 2 {
		t.Errorf("RejectedCount() = %d, want 2", res.RejectedCount())
	}
	if !errors.Is(res.FirstErr, ErrMissingField) {
		t.Errorf("FirstErr = %v, want missing field", res.FirstErr)
	}
}

func TestSchemaRequiredKeys(t *testing.T) {
	if got := len(StreamSchema.RequiredKeys()); got != 23 {
		t.Errorf("len(StreamSchema.RequiredKeys()) = %d, want 23", got)
	}
	if got := len(RESTSchema.RequiredKeys()); got != 21 {
		t.Errorf("len(RESTSchema.RequiredKeys()) = %d, want 21", got)
	}
}
