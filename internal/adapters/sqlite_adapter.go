package adapters

import (
	"context"

	"bilancio/internal/core"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// SQLiteAdapter adapts SQLiteRepository and EntryService to the ledger ports.
// Writes go through the service so dirty marking and AMQP events happen;
// reads go straight to storage.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.EntryService
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.EntryService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

// AddEntry implements ledger.EntryWriter
func (a *SQLiteAdapter) AddEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	return a.service.CreateEntry(ctx, e)
}

// UpdateEntry implements ledger.EntryUpdater
func (a *SQLiteAdapter) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	return a.service.UpdateEntry(ctx, e)
}

// DeleteEntry implements ledger.EntryUpdater
func (a *SQLiteAdapter) DeleteEntry(ctx context.Context, id int64) error {
	return a.service.DeleteEntry(ctx, id)
}

// GetEntry implements ledger.EntryReader
func (a *SQLiteAdapter) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	return a.storage.GetEntry(ctx, id)
}

// ListEntries implements ledger.EntryReader
func (a *SQLiteAdapter) ListEntries(ctx context.Context) ([]core.Entry, error) {
	return a.storage.ListEntries(ctx)
}

// ListEntriesInRange implements ledger.EntryReader
func (a *SQLiteAdapter) ListEntriesInRange(ctx context.Context, pr core.PeriodRange) ([]core.Entry, error) {
	return a.storage.ListEntriesInRange(ctx, pr)
}

// SetBalance implements ledger.BalanceStore
func (a *SQLiteAdapter) SetBalance(ctx context.Context, amount core.Money) error {
	return a.storage.SetBalance(ctx, amount)
}

// GetBalance implements ledger.BalanceStore
func (a *SQLiteAdapter) GetBalance(ctx context.Context) (core.Money, error) {
	return a.storage.GetBalance(ctx)
}
