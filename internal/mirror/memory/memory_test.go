package memory

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/mirror"
)

func TestStoreWriteSummaryUpserts(t *testing.T) {
	s := New()
	jan := core.Period{Year: 2024, Month: 1}

	ref, err := s.WriteSummary(context.Background(), mirror.SummaryRow{
		Period:  jan,
		Income:  core.Money{Cents: 200000},
		Expense: core.Money{Cents: 30000},
		Net:     core.Money{Cents: 170000},
	})
	if err != nil || ref != "mem:2024-01" {
		t.Fatalf("unexpected write: ref=%q err=%v", ref, err)
	}

	// A second write for the same period replaces the row.
	_, err = s.WriteSummary(context.Background(), mirror.SummaryRow{
		Period: jan,
		Net:    core.Money{Cents: 500},
	})
	if err != nil || s.Len() != 1 {
		t.Fatalf("expected upsert to keep one row, got len=%d err=%v", s.Len(), err)
	}
	row, ok := s.Get(jan)
	if !ok || row.Net.Cents != 500 {
		t.Fatalf("unexpected row after upsert: %+v ok=%v", row, ok)
	}
}

func TestStoreRowsChronological(t *testing.T) {
	s := New()
	for _, p := range []core.Period{
		{Year: 2024, Month: 3},
		{Year: 2023, Month: 12},
		{Year: 2024, Month: 1},
	} {
		if _, err := s.WriteSummary(context.Background(), mirror.SummaryRow{Period: p}); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	rows := s.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []string{"2023-12", "2024-01", "2024-03"}
	for i, w := range want {
		if rows[i].Period.String() != w {
			t.Fatalf("row %d: got %s, want %s", i, rows[i].Period, w)
		}
	}
}

func TestStoreRejectsInvalidPeriod(t *testing.T) {
	s := New()
	_, err := s.WriteSummary(context.Background(), mirror.SummaryRow{Period: core.Period{Year: 2024}})
	if !errors.Is(err, core.ErrInvalidPeriodRange) {
		t.Fatalf("expected ErrInvalidPeriodRange, got %v", err)
	}
}
