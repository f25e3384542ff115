package analytics

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"bilancio/internal/core"
)

func seriesOf(t *testing.T, start string, cents ...int64) []core.SeriesPoint {
	t.Helper()
	p, err := core.ParsePeriod(start)
	if err != nil {
		t.Fatalf("parse %q: %v", start, err)
	}
	points := make([]core.SeriesPoint, len(cents))
	for i, c := range cents {
		points[i] = core.SeriesPoint{Period: p, Value: core.Money{Cents: c}}
		p = p.Next()
	}
	return points
}

func TestPredictNeedsTwoPoints(t *testing.T) {
	if _, err := Predict(nil, 1); !errors.Is(err, core.ErrInsufficientHistory) {
		t.Fatalf("empty series: expected ErrInsufficientHistory, got %v", err)
	}
	if _, err := Predict(seriesOf(t, "2024-01", 1000), 1); !errors.Is(err, core.ErrInsufficientHistory) {
		t.Fatalf("single point: expected ErrInsufficientHistory, got %v", err)
	}
	if _, err := Predict(seriesOf(t, "2024-01", 1000, 1000), 1); err != nil {
		t.Fatalf("two points: expected ok, got %v", err)
	}
}

func TestPredictRejectsBadHorizon(t *testing.T) {
	series := seriesOf(t, "2024-01", 1000, 2000)
	for _, h := range []int{0, -1, -100} {
		if _, err := Predict(series, h); !errors.Is(err, core.ErrInvalidHorizon) {
			t.Fatalf("horizon %d: expected ErrInvalidHorizon, got %v", h, err)
		}
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	series := seriesOf(t, "2023-07", 180000, 165021, 171333, 168000, 190411, 158999)
	a, err := Predict(series, 4)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	b, err := Predict(series, 4)
	if err != nil {
		t.Fatalf("predict again: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different predictions:\n%+v\n%+v", a, b)
	}
}

func TestPredictZeroVariance(t *testing.T) {
	series := seriesOf(t, "2024-01", 170000, 170000, 170000)
	for _, h := range []int{1, 3, 12} {
		pred, err := Predict(series, h)
		if err != nil {
			t.Fatalf("horizon %d: %v", h, err)
		}
		if len(pred.Points) != h {
			t.Fatalf("horizon %d: expected %d points, got %d", h, h, len(pred.Points))
		}
		for i, p := range pred.Points {
			if p.Value.Cents != 170000 {
				t.Fatalf("horizon %d point %d: expected constant 170000, got %d", h, i, p.Value.Cents)
			}
		}
	}
}

func TestPredictReproducesLinearData(t *testing.T) {
	// Values exactly on value(t) = 2500*t + 100000.
	line := func(x int) int64 { return int64(2500*x + 100000) }
	series := seriesOf(t, "2023-01", line(0), line(1), line(2), line(3), line(4), line(5))

	pred, err := Predict(series, 3)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for k, p := range pred.Points {
		want := line(6 + k)
		if p.Value.Cents != want {
			t.Fatalf("point %d: expected %d, got %d", k, want, p.Value.Cents)
		}
	}
}

func TestPredictNextMonthFromFlatNet(t *testing.T) {
	// Two months of salary minus rent, 1700.00 each: the next month's
	// predicted net is the same 1700.00.
	pred, err := Predict(seriesOf(t, "2024-01", 170000, 170000), 1)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(pred.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pred.Points))
	}
	got := pred.Points[0]
	if got.Period != (core.Period{Year: 2024, Month: time.March}) {
		t.Fatalf("expected period 2024-03, got %v", got.Period)
	}
	if got.Value.Cents != 170000 {
		t.Fatalf("expected 170000, got %d", got.Value.Cents)
	}
	if pred.Method != core.MethodLinearTrend {
		t.Fatalf("expected method %q, got %q", core.MethodLinearTrend, pred.Method)
	}
}

func TestPredictCrossesYearBoundary(t *testing.T) {
	pred, err := Predict(seriesOf(t, "2024-10", 1000, 2000, 3000), 2)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Points[0].Period != (core.Period{Year: 2025, Month: time.January}) {
		t.Fatalf("expected 2025-01, got %v", pred.Points[0].Period)
	}
	if pred.Points[1].Period != (core.Period{Year: 2025, Month: time.February}) {
		t.Fatalf("expected 2025-02, got %v", pred.Points[1].Period)
	}
	if pred.Points[0].Value.Cents != 4000 || pred.Points[1].Value.Cents != 5000 {
		t.Fatalf("trend continuation wrong: %+v", pred.Points)
	}
}

func TestPredictRejectsNonConsecutivePeriods(t *testing.T) {
	series := []core.SeriesPoint{
		{Period: core.Period{Year: 2024, Month: time.January}, Value: core.Money{Cents: 1000}},
		{Period: core.Period{Year: 2024, Month: time.March}, Value: core.Money{Cents: 2000}},
	}
	if _, err := Predict(series, 1); err == nil {
		t.Fatalf("expected error for gapped series")
	}
}

func TestProjectBalance(t *testing.T) {
	pred, err := Predict(seriesOf(t, "2024-01", 170000, 170000), 3)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	outlook := ProjectBalance(core.Money{Cents: 50000}, pred)
	if outlook.Balance.Cents != 50000 || outlook.Method != core.MethodLinearTrend {
		t.Fatalf("outlook header wrong: %+v", outlook)
	}
	want := []int64{220000, 390000, 560000}
	for i, p := range outlook.Points {
		if p.Value.Cents != want[i] {
			t.Fatalf("point %d: expected %d, got %d", i, want[i], p.Value.Cents)
		}
	}
}
