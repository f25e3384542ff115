package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"bilancio/internal/core"
)

// MinHistory is the smallest number of observed periods a forecast
// accepts. A single point cannot establish a trend.
const MinHistory = 2

// Predict extrapolates a historical series by fitting a least-squares
// line value = a*t + b over t = 0..n-1 and evaluating it at the next
// horizon months. Predicted values are rounded half away from zero to
// whole cents. The computation is deterministic: identical series and
// horizon always produce identical output.
//
// A series of equal values fits slope 0 and predicts that constant; no
// input that passed ledger validation can cause a numeric fault here.
func Predict(series []core.SeriesPoint, horizon int) (core.Prediction, error) {
	if horizon < 1 {
		return core.Prediction{}, fmt.Errorf("%w: %d", core.ErrInvalidHorizon, horizon)
	}
	if len(series) < MinHistory {
		return core.Prediction{}, fmt.Errorf("%w: need %d observed periods, have %d",
			core.ErrInsufficientHistory, MinHistory, len(series))
	}
	// The series builder emits consecutive months; a gap means a caller
	// bypassed it and the fit would silently assume wrong spacing.
	for i := 1; i < len(series); i++ {
		if series[i].Period != series[i-1].Period.Next() {
			return core.Prediction{}, fmt.Errorf("series periods not consecutive: %s after %s",
				series[i].Period, series[i-1].Period)
		}
	}

	n := len(series)
	ts := make([]float64, n)
	values := make([]float64, n)
	for i, pt := range series {
		ts[i] = float64(i)
		values[i] = float64(pt.Value.Cents)
	}
	intercept, slope := stat.LinearRegression(ts, values, nil, false)

	points := make([]core.SeriesPoint, horizon)
	period := series[n-1].Period
	for k := 1; k <= horizon; k++ {
		period = period.Next()
		t := float64(n - 1 + k)
		points[k-1] = core.SeriesPoint{
			Period: period,
			Value:  core.Money{Cents: int64(math.Round(slope*t + intercept))},
		}
	}
	return core.Prediction{Method: core.MethodLinearTrend, Points: points}, nil
}

// ProjectBalance applies a net-value prediction to the current bank
// balance, yielding the expected balance at the end of each predicted
// month (running sum, same order as the prediction).
func ProjectBalance(balance core.Money, prediction core.Prediction) core.Outlook {
	points := make([]core.SeriesPoint, len(prediction.Points))
	running := balance.Cents
	for i, pt := range prediction.Points {
		running += pt.Value.Cents
		points[i] = core.SeriesPoint{Period: pt.Period, Value: core.Money{Cents: running}}
	}
	return core.Outlook{Balance: balance, Method: prediction.Method, Points: points}
}
