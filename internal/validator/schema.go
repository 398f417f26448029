package validator

// Schema maps logical ticker fields to wire keys. An empty key means the field
// is not part of that wire format.
type Schema struct {
	Name string

	EventType string
	EventTime string
	Symbol    string

	PriceChange        string
	PriceChangePercent string
	WeightedAvgPrice   string
	PrevClosePrice     string
	LastPrice          string
	LastQty            string
	BidPrice           string
	BidQty             string
	AskPrice           string
	AskQty             string
	OpenPrice          string
	HighPrice          string
	LowPrice           string
	Volume             string
	QuoteVolume        string

	OpenTime     string
	CloseTime    string
	FirstTradeID string
	LastTradeID  string
	TradeCount   string
}

// StreamSchema is the compact key layout of the all-symbols ticker stream.
var StreamSchema = Schema{
	Name:               "stream",
	EventType:          "e",
	EventTime:          "E",
	Symbol:             "s",
	PriceChange:        "p",
	PriceChangePercent: "P",
	WeightedAvgPrice:   "w",
	PrevClosePrice:     "x",
	LastPrice:          "c",
	LastQty:            "Q",
	BidPrice:           "b",
	BidQty:             "B",
	AskPrice:           "a",
	AskQty:             "A",
	OpenPrice:          "o",
	HighPrice:          "h",
	LowPrice:           "l",
	Volume:             "v",
	QuoteVolume:        "q",
	OpenTime:           "O",
	CloseTime:          "C",
	FirstTradeID:       "F",
	LastTradeID:        "L",
	TradeCount:         "n",
}

// RESTSchema is the verbose key layout of the 24hr ticker REST endpoint.
var RESTSchema = Schema{
	Name:               "rest",
	Symbol:             "symbol",
	PriceChange:        "priceChange",
	PriceChangePercent: "priceChangePercent",
	WeightedAvgPrice:   "weightedAvgPrice",
	PrevClosePrice:     "prevClosePrice",
	LastPrice:          "lastPrice",
	LastQty:            "lastQty",
	BidPrice:           "bidPrice",
	BidQty:             "bidQty",
	AskPrice:           "askPrice",
	AskQty:             "askQty",
	OpenPrice:          "openPrice",
	HighPrice:          "highPrice",
	LowPrice:           "lowPrice",
	Volume:             "volume",
	QuoteVolume:        "quoteVolume",
	OpenTime:           "openTime",
	CloseTime:          "closeTime",
	FirstTradeID:       "firstId",
	LastTradeID:        "lastId",
	TradeCount:         "count",
}

// RequiredKeys returns every wire key the schema requires, in check order.
func (s Schema) RequiredKeys() []string {
	all := []string{
		s.EventType, s.EventTime, s.Symbol,
		s.PriceChange, s.PriceChangePercent, s.WeightedAvgPrice, s.PrevClosePrice,
		s.LastPrice, s.LastQty, s.BidPrice, s.BidQty, s.AskPrice, s.AskQty,
		s.OpenPrice, s.HighPrice, s.LowPrice, s.Volume, s.QuoteVolume,
		s.OpenTime, s.CloseTime, s.FirstTradeID, s.LastTradeID, s.TradeCount,
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
