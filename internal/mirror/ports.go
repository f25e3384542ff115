package mirror

import (
	"context"

	"bilancio/internal/core"
)

// SummaryRow is one mirrored month: the period and its aggregate totals.
type SummaryRow struct {
	Period  core.Period
	Income  core.Money
	Expense core.Money
	Net     core.Money
}

// Ports for outbound mirrors.
type (
	// SummaryWriter upserts one month's totals in the mirror. Writing the
	// same period twice replaces the earlier row.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, row SummaryRow) (rowRef string, err error)
	}
)
