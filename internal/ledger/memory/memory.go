package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bilancio/internal/core"
)

// Store is a mutex-guarded in-memory ledger. Every mutation happens
// entirely under the lock, so a reader observes either the previous or
// the new state of an entry, never a partial update. Identifiers come
// from a counter that only moves forward: a deleted id is never reissued.
type Store struct {
	mu      sync.Mutex
	window  core.DateWindow
	now     func() time.Time
	nextID  int64
	entries map[int64]core.Entry
	balance core.Money
}

func New(window core.DateWindow) *Store {
	return &Store{
		window:  window,
		now:     time.Now,
		nextID:  1,
		entries: make(map[int64]core.Entry),
	}
}

// AddEntry validates e, assigns the next identifier and inserts it.
// The ledger is unchanged when validation fails.
func (s *Store) AddEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(s.window, s.now()); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.entries[e.ID] = e
	return e, nil
}

// UpdateEntry re-validates every field and replaces the stored entry.
func (s *Store) UpdateEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(s.window, s.now()); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; !ok {
		return core.Entry{}, core.ErrEntryNotFound
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *Store) DeleteEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return core.ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) GetEntry(_ context.Context, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return core.Entry{}, core.ErrEntryNotFound
	}
	return e, nil
}

// ListEntries returns a snapshot of the whole ledger ordered by id.
func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEntriesInRange returns the entries whose date falls inside r,
// ordered by date then id.
func (s *Store) ListEntriesInRange(_ context.Context, r core.PeriodRange) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Entry, 0)
	for _, e := range s.entries {
		if r.Contains(core.PeriodOf(e.Date)) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetBalance(_ context.Context, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = amount
	return nil
}

func (s *Store) GetBalance(_ context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// Len reports the number of entries, mainly for tests and health output.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
