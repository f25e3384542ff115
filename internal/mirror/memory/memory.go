package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/mirror"
)

// Store keeps mirrored summaries in memory, keyed by period. It stands in
// for the Sheets mirror in tests and in deployments without one.
type Store struct {
	mu   sync.Mutex
	rows map[core.Period]mirror.SummaryRow
}

func New() *Store {
	return &Store{rows: make(map[core.Period]mirror.SummaryRow)}
}

// WriteSummary upserts the row and returns a synthetic row reference.
func (s *Store) WriteSummary(_ context.Context, row mirror.SummaryRow) (string, error) {
	if row.Period.Month < time.January || row.Period.Month > time.December {
		return "", fmt.Errorf("%w: month %d", core.ErrInvalidPeriodRange, row.Period.Month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Period] = row
	return fmt.Sprintf("mem:%s", row.Period), nil
}

// Rows returns the mirrored rows in chronological order.
func (s *Store) Rows() []mirror.SummaryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mirror.SummaryRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// Get returns the mirrored row for a period, if present.
func (s *Store) Get(p core.Period) (mirror.SummaryRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[p]
	return r, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
