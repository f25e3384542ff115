package analytics

import (
	"fmt"
	"strings"

	"bilancio/internal/core"
)

// BuildSeries projects one metric out of each summary, one point per
// summary in the same order. Pure projection: no interpolation, no
// smoothing.
func BuildSeries(summaries []core.PeriodSummary, metric core.Metric) ([]core.SeriesPoint, error) {
	points := make([]core.SeriesPoint, len(summaries))
	for i, s := range summaries {
		var v core.Money
		switch metric {
		case core.MetricIncome:
			v = s.TotalIncome
		case core.MetricExpense:
			v = s.TotalExpense
		case core.MetricNet:
			v = s.Net
		default:
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidMetric, metric)
		}
		points[i] = core.SeriesPoint{Period: s.Period, Value: v}
	}
	return points, nil
}

// ByCategorySeries projects one category's contribution per period,
// defaulting to 0 for periods where the category is absent. A summary
// stores the category's net, so income is its positive part and expense
// the magnitude of its negative part. Lookup is exact-string and
// case-sensitive, same as aggregation.
func ByCategorySeries(summaries []core.PeriodSummary, category string, metric core.Metric) ([]core.SeriesPoint, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("%w: empty category", core.ErrInvalidCategory)
	}
	points := make([]core.SeriesPoint, len(summaries))
	for i, s := range summaries {
		net := s.ByCategory[category]
		var v core.Money
		switch metric {
		case core.MetricIncome:
			if net.Cents > 0 {
				v = net
			}
		case core.MetricExpense:
			if net.Cents < 0 {
				v = core.Money{Cents: -net.Cents}
			}
		case core.MetricNet:
			v = net
		default:
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidMetric, metric)
		}
		points[i] = core.SeriesPoint{Period: s.Period, Value: v}
	}
	return points, nil
}
