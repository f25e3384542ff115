package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Entry is one financial event. Positive amounts are income,
	// negative amounts are expenses; a zero amount is invalid.
	Entry struct {
		ID       int64  `json:"id"`
		Amount   Money  `json:"amountCents"`
		Date     Date   `json:"date"`
		Category string `json:"category"`
		Note     string `json:"note,omitempty"`
	}

	// DateWindow bounds the dates a ledger accepts.
	DateWindow struct {
		Min       Date
		MaxFuture time.Duration
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInvalidMetric       = errors.New("invalid metric")
	ErrInvalidHorizon      = errors.New("invalid horizon")
	ErrInvalidPeriodRange  = errors.New("invalid period range")
)

// DefaultDateWindow accepts dates from 1970-01-01 up to roughly one year
// past the validating clock.
func DefaultDateWindow() DateWindow {
	return DateWindow{
		Min:       NewDate(1970, 1, 1),
		MaxFuture: 366 * 24 * time.Hour,
	}
}

// Validate checks that d falls inside the window relative to now.
func (w DateWindow) Validate(d Date, now time.Time) error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is zero", ErrInvalidDate)
	}
	if d.Time.Before(w.Min.Time) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDate, d.Format("2006-01-02"), w.Min.Format("2006-01-02"))
	}
	if w.MaxFuture > 0 && d.Time.After(now.Add(w.MaxFuture)) {
		return fmt.Errorf("%w: %s is too far in the future", ErrInvalidDate, d.Format("2006-01-02"))
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a Date from year, month, day. Components are passed to
// time.Date unchecked; use DateOf when the components come from user input.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf builds a Date and rejects components that do not name a real
// calendar day (month 13, Feb 30, ...), which time.Date would silently
// normalize away.
func DateOf(year, month, day int) (Date, error) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	y, m, dd := t.Date()
	if y != year || int(m) != month || dd != day {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d is not a calendar date", ErrInvalidDate, year, month, day)
	}
	return Date{Time: t}, nil
}

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDate(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate re-checks every field against the ledger's invariants. Callers
// are expected to have parsed their input already; the ledger never trusts
// them and validates again before accepting an entry.
func (e Entry) Validate(w DateWindow, now time.Time) error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := w.Validate(e.Date, now); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidCategory)
	}
	if len(e.Category) > 100 {
		return fmt.Errorf("%w: category too long (max 100 characters)", ErrInvalidCategory)
	}
	return nil
}
