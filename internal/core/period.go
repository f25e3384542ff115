package core

import (
	"fmt"
	"strings"
	"time"
)

// Period is one calendar month, the unit of aggregation.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodRange is an inclusive [From, To] span of calendar months.
type PeriodRange struct {
	From Period
	To   Period
}

// PeriodOf returns the period containing d.
func PeriodOf(d Date) Period {
	return Period{Year: d.Time.Year(), Month: d.Time.Month()}
}

// ParsePeriod parses a strict YYYY-MM period.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriodRange, s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start returns the first day of the period.
func (p Period) Start() Date {
	return NewDate(p.Year, int(p.Month), 1)
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// index maps the period onto a single month counter so ordering and
// distance checks stay integer arithmetic.
func (p Period) index() int {
	return p.Year*12 + int(p.Month) - 1
}

// Before reports whether p is strictly earlier than q.
func (p Period) Before(q Period) bool {
	return p.index() < q.index()
}

func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Period) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePeriod(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// NewPeriodRange builds an inclusive range and rejects an empty or
// inverted span.
func NewPeriodRange(from, to Period) (PeriodRange, error) {
	if from.Year == 0 || to.Year == 0 {
		return PeriodRange{}, fmt.Errorf("%w: missing bound", ErrInvalidPeriodRange)
	}
	if to.Before(from) {
		return PeriodRange{}, fmt.Errorf("%w: %s is after %s", ErrInvalidPeriodRange, from, to)
	}
	return PeriodRange{From: from, To: to}, nil
}

// Len returns the number of months in the range.
func (r PeriodRange) Len() int {
	return r.To.index() - r.From.index() + 1
}

// Contains reports whether p falls inside the range.
func (r PeriodRange) Contains(p Period) bool {
	return !p.Before(r.From) && !r.To.Before(p)
}

// Periods enumerates every month of the range in chronological order.
func (r PeriodRange) Periods() []Period {
	out := make([]Period, 0, r.Len())
	for p := r.From; !r.To.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

func (r PeriodRange) String() string {
	return r.From.String() + ".." + r.To.String()
}
