// Package analytics turns a ledger of entries into period summaries,
// chart series and trend forecasts. Every function here is a pure,
// deterministic computation over its arguments: no clock, no hidden
// state, integer-cents arithmetic throughout.
package analytics

import (
	"fmt"

	"bilancio/internal/core"
)

// Summarize folds entries into one PeriodSummary per calendar month of r,
// inclusive, in chronological order. Months without entries are emitted
// with zero totals. Entries dated outside r are ignored. Category buckets
// are keyed by the exact category string: matching is case-sensitive by
// policy, so "Rent" and "rent" never merge.
func Summarize(entries []core.Entry, r core.PeriodRange) ([]core.PeriodSummary, error) {
	if r.From.Year == 0 || r.To.Year == 0 || r.To.Before(r.From) {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidPeriodRange, r)
	}

	periods := r.Periods()
	summaries := make([]core.PeriodSummary, len(periods))
	index := make(map[core.Period]int, len(periods))
	for i, p := range periods {
		summaries[i] = core.PeriodSummary{
			Period:     p,
			ByCategory: make(map[string]core.Money),
		}
		index[p] = i
	}

	for _, e := range entries {
		i, ok := index[core.PeriodOf(e.Date)]
		if !ok {
			continue
		}
		s := &summaries[i]
		if e.Amount.Cents > 0 {
			s.TotalIncome.Cents += e.Amount.Cents
		} else {
			s.TotalExpense.Cents -= e.Amount.Cents
		}
		s.Net.Cents += e.Amount.Cents

		bucket := s.ByCategory[e.Category]
		bucket.Cents += e.Amount.Cents
		s.ByCategory[e.Category] = bucket
	}

	return summaries, nil
}
