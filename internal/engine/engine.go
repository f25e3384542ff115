// Package engine answers the read-only queries of the application:
// monthly summaries, chart series, forecasts and the balance outlook.
// Every answer is recomputed from the entries the engine reads through
// its ports; the engine never mutates the ledger.
package engine

import (
	"context"
	"fmt"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// Engine composes an entry reader and a balance store into the query
// surface served over HTTP. It holds no state of its own, so a single
// instance is safe for concurrent use.
type Engine struct {
	entries  ledger.EntryReader
	balances ledger.BalanceStore
}

func New(entries ledger.EntryReader, balances ledger.BalanceStore) *Engine {
	return &Engine{
		entries:  entries,
		balances: balances,
	}
}

// GetSummary returns one summary per calendar month of r, in
// chronological order, months without entries included.
func (e *Engine) GetSummary(ctx context.Context, r core.PeriodRange) ([]core.PeriodSummary, error) {
	entries, err := e.entries.ListEntriesInRange(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return analytics.Summarize(entries, r)
}

// GetChartSeries returns the month-by-month values of one metric
// across r.
func (e *Engine) GetChartSeries(ctx context.Context, r core.PeriodRange, metric core.Metric) ([]core.SeriesPoint, error) {
	summaries, err := e.GetSummary(ctx, r)
	if err != nil {
		return nil, err
	}
	return analytics.BuildSeries(summaries, metric)
}

// GetCategorySeries returns the month-by-month values of one metric
// for a single category across r. Months where the category never
// appears count as zero.
func (e *Engine) GetCategorySeries(ctx context.Context, r core.PeriodRange, category string, metric core.Metric) ([]core.SeriesPoint, error) {
	summaries, err := e.GetSummary(ctx, r)
	if err != nil {
		return nil, err
	}
	return analytics.ByCategorySeries(summaries, category, metric)
}

// GetForecast fits a linear trend to the metric over r and extends it
// horizon months past the end of the range.
func (e *Engine) GetForecast(ctx context.Context, r core.PeriodRange, metric core.Metric, horizon int) (core.Prediction, error) {
	series, err := e.GetChartSeries(ctx, r, metric)
	if err != nil {
		return core.Prediction{}, err
	}
	return analytics.Predict(series, horizon)
}

// GetOutlook projects the bank balance forward by stacking the
// predicted net of each future month on top of the current balance.
// A ledger without a recorded balance projects from zero.
func (e *Engine) GetOutlook(ctx context.Context, r core.PeriodRange, horizon int) (core.Outlook, error) {
	prediction, err := e.GetForecast(ctx, r, core.MetricNet, horizon)
	if err != nil {
		return core.Outlook{}, err
	}

	balance, err := e.balances.GetBalance(ctx)
	if err != nil {
		return core.Outlook{}, fmt.Errorf("get balance: %w", err)
	}

	return analytics.ProjectBalance(balance, prediction), nil
}
