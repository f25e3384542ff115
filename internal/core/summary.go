package core

import "fmt"

// Metric selects which figure of a PeriodSummary a series projects.
// It is a closed set; ParseMetric is the only way in from the wire.
type Metric uint8

const (
	MetricIncome Metric = iota + 1
	MetricExpense
	MetricNet
)

// MethodLinearTrend tags predictions produced by the least-squares
// linear fit. The field exists so alternative methods can be added
// without changing the result shape.
const MethodLinearTrend = "linear-trend"

// PeriodSummary is the aggregate of one calendar month. Derived, never
// stored: recomputing it from the same entries always yields the same
// summary.
type PeriodSummary struct {
	Period       Period           `json:"period"`
	TotalIncome  Money            `json:"totalIncomeCents"`
	TotalExpense Money            `json:"totalExpenseCents"`
	Net          Money            `json:"netCents"`
	ByCategory   map[string]Money `json:"byCategory"`
}

// SeriesPoint is one (period, value) pair of a chart series.
type SeriesPoint struct {
	Period Period `json:"period"`
	Value  Money  `json:"valueCents"`
}

// Prediction holds extrapolated points for periods strictly after the
// last observed one.
type Prediction struct {
	Method string        `json:"method"`
	Points []SeriesPoint `json:"points"`
}

// Outlook projects the bank balance forward by applying predicted net
// values month by month.
type Outlook struct {
	Balance Money         `json:"balanceCents"`
	Method  string        `json:"method"`
	Points  []SeriesPoint `json:"points"`
}

// ParseMetric maps the wire words income, expense and net onto the
// closed Metric set.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "income":
		return MetricIncome, nil
	case "expense":
		return MetricExpense, nil
	case "net":
		return MetricNet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMetric, s)
	}
}

func (m Metric) String() string {
	switch m {
	case MetricIncome:
		return "income"
	case MetricExpense:
		return "expense"
	case MetricNet:
		return "net"
	default:
		return "unknown"
	}
}
