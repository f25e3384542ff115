package ledger

import (
	"context"

	"bilancio/internal/core"
)

// Ports for the collaborators around the engine. The ledger is the
// single source of truth; everything else is recomputed from it.
type (
	// EntryWriter accepts a new entry. Implementations re-validate
	// every field and assign the identifier; the caller's input is
	// never trusted.
	EntryWriter interface {
		AddEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	}

	// EntryUpdater replaces or removes an entry by identifier. An
	// update is atomic: concurrent readers observe the old entry or
	// the new one, never a mix.
	EntryUpdater interface {
		UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
		DeleteEntry(ctx context.Context, id int64) error
	}

	// EntryReader serves consistent snapshots of the ledger.
	EntryReader interface {
		GetEntry(ctx context.Context, id int64) (core.Entry, error)
		ListEntries(ctx context.Context) ([]core.Entry, error)
		ListEntriesInRange(ctx context.Context, r core.PeriodRange) ([]core.Entry, error)
	}

	// BalanceStore keeps the current bank balance used by the outlook
	// projection. A ledger starts at zero until a balance is set.
	BalanceStore interface {
		SetBalance(ctx context.Context, amount core.Money) error
		GetBalance(ctx context.Context) (core.Money, error)
	}
)
