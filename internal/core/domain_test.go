package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateOf(t *testing.T) {
	cases := []struct {
		y, m, d int
		ok      bool
	}{
		{2025, 1, 1, true},
		{2025, 12, 31, true},
		{2024, 2, 29, true},  // leap day
		{2025, 2, 29, false}, // not a leap year
		{2025, 2, 30, false},
		{2025, 13, 1, false},
		{2025, 0, 10, false},
		{2025, 4, 31, false},
		{2025, 6, 0, false},
	}
	for i, tc := range cases {
		_, err := DateOf(tc.y, tc.m, tc.d)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error", i)
			}
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("case %d expected ErrInvalidDate, got %v", i, err)
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Year() != 2024 || d.Month() != 2 || d.Day() != 29 {
		t.Fatalf("unexpected components: %v", d)
	}
	for _, in := range []string{"2024-02-30", "2024-13-01", "02/2024", "garbage", ""} {
		if _, err := ParseDate(in); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestDateWindowValidate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w := DefaultDateWindow()

	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 6, 15), true},
		{NewDate(1970, 1, 1), true},
		{NewDate(2026, 6, 1), true},   // within a year ahead
		{NewDate(2030, 1, 1), false},  // absurd future
		{NewDate(1969, 12, 31), false},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := w.Validate(tc.d, now)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("case %d expected ErrInvalidDate, got %v", i, err)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: -250}).Validate(); err != nil {
		t.Fatalf("expected ok for negative, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestEntryValidate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w := DefaultDateWindow()

	good := Entry{
		Amount:   Money{Cents: -1250},
		Date:     NewDate(2025, 6, 1),
		Category: "Groceries",
		Note:     "weekly shop",
	}
	if err := good.Validate(w, now); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		e    Entry
		want error
	}{
		{Entry{Amount: Money{}, Date: NewDate(2025, 6, 1), Category: "c"}, ErrInvalidAmount},
		{Entry{Amount: Money{Cents: 1}, Date: Date{}, Category: "c"}, ErrInvalidDate},
		{Entry{Amount: Money{Cents: 1}, Date: NewDate(2030, 1, 1), Category: "c"}, ErrInvalidDate},
		{Entry{Amount: Money{Cents: 1}, Date: NewDate(2025, 6, 1), Category: ""}, ErrInvalidCategory},
		{Entry{Amount: Money{Cents: 1}, Date: NewDate(2025, 6, 1), Category: "   "}, ErrInvalidCategory},
	}
	for i, tc := range cases {
		err := tc.e.Validate(w, now)
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestEntryJSON(t *testing.T) {
	e := Entry{
		ID:       7,
		Amount:   Money{Cents: -30000},
		Date:     NewDate(2024, 1, 10),
		Category: "Rent",
	}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":7,"amountCents":-30000,"date":"2024-01-10","category":"Rent"}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
	var got Entry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != e.ID || got.Amount != e.Amount || !got.Date.Equal(e.Date.Time) || got.Category != e.Category {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, e)
	}
}
