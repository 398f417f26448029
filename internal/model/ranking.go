package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTopN is the size of the published ranking.
const DefaultTopN = 20

// RankEntry is one line of the ranking view.
type RankEntry struct {
	Symbol        string          `json:"symbol"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

// RankingView is an ordered, bounded list of movers.
type RankingView []RankEntry

// BuildRanking returns the top n records of the batch by percent change,
// highest first. Ties keep batch order.
func BuildRanking(batch SnapshotBatch, n int) RankingView {
	return rank(batch, n, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

// BuildLosers returns the bottom n records of the batch by percent change,
// lowest first. Ties keep batch order.
func BuildLosers(batch SnapshotBatch, n int) RankingView {
	return rank(batch, n, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

func rank(batch SnapshotBatch, n int, before func(a, b decimal.Decimal) bool) RankingView {
	if n <= 0 || len(batch.Records) == 0 {
		return RankingView{}
	}

	view := make(RankingView, len(batch.Records))
	for i, r := range batch.Records {
		view[i] = RankEntry{Symbol: r.Symbol, PercentChange: r.PriceChangePercent}
	}

	sort.SliceStable(view, func(i, j int) bool {
		return before(view[i].PercentChange, view[j].PercentChange)
	})

	if len(view) > n {
		view = view[:n]
	}
	return view
}

// Symbols returns the ranked symbols in order.
func (v RankingView) Symbols() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Symbol
	}
	return out
}
