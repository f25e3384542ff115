package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/mirror"
	"bilancio/internal/storage"
)

// reconcileConcurrency bounds parallel mirror writes per batch.
const reconcileConcurrency = 4

// MirrorWorker recomputes the monthly totals of dirty periods from SQLite
// and upserts them into the configured mirror.
type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	mirror    mirror.SummaryWriter
	batchSize int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, mirror mirror.SummaryWriter, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleEntryEvent processes a single entry event from AMQP. Periods are
// marked dirty before mirroring, so a failed write is retried by the next
// reconcile pass even if the message is lost.
func (w *MirrorWorker) HandleEntryEvent(ctx context.Context, msg *amqp.EntryEventMessage) error {
	slog.InfoContext(ctx, "Processing entry event",
		"op", msg.Op,
		"entry_id", msg.EntryID,
		"periods", len(msg.Periods))

	for _, p := range msg.Periods {
		if err := w.storage.MarkPeriodDirty(ctx, p); err != nil {
			return fmt.Errorf("mark period %s dirty: %w", p, err)
		}
	}

	for _, p := range msg.Periods {
		if err := w.reconcilePeriod(ctx, p); err != nil {
			return fmt.Errorf("mirror period %s: %w", p, err)
		}
	}

	return nil
}

// ProcessDirtyPeriods mirrors up to one batch of dirty periods.
// This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) ProcessDirtyPeriods(ctx context.Context) error {
	mirrored, err := w.reconcileBatch(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if mirrored > 0 {
		slog.InfoContext(ctx, "Reconcile pass completed", "mirrored", mirrored)
	}
	return nil
}

// StartupMirrorCheck drains dirty periods at worker startup. This is
// useful to recover from missed AMQP messages or worker downtime.
func (w *MirrorWorker) StartupMirrorCheck(ctx context.Context) error {
	total := 0
	for {
		mirrored, err := w.reconcileBatch(ctx, w.batchSize*5)
		total += mirrored
		if err != nil {
			return fmt.Errorf("startup mirror check: %w", err)
		}
		if mirrored == 0 {
			break
		}
	}

	if total == 0 {
		slog.InfoContext(ctx, "No dirty periods found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Startup mirror completed", "mirrored", total)
	return nil
}

// reconcileBatch mirrors up to limit dirty periods concurrently and
// returns how many rows were written. Periods that fail stay dirty.
func (w *MirrorWorker) reconcileBatch(ctx context.Context, limit int) (int, error) {
	dirty, err := w.storage.ListDirtyPeriods(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list dirty periods: %w", err)
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Reconciling dirty periods", "count", len(dirty))

	var mirrored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, p := range dirty {
		p := p
		g.Go(func() error {
			if err := w.reconcilePeriod(gctx, p); err != nil {
				return fmt.Errorf("mirror period %s: %w", p, err)
			}
			mirrored.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(mirrored.Load()), err
	}

	return int(mirrored.Load()), nil
}

// reconcilePeriod recomputes one month's totals from storage and upserts
// them in the mirror. The dirty flag is cleared only after a successful
// write.
func (w *MirrorWorker) reconcilePeriod(ctx context.Context, p core.Period) error {
	rng, err := core.NewPeriodRange(p, p)
	if err != nil {
		return fmt.Errorf("period range: %w", err)
	}

	entries, err := w.storage.ListEntriesInRange(ctx, rng)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	summaries, err := analytics.Summarize(entries, rng)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	s := summaries[0]

	ref, err := w.mirror.WriteSummary(ctx, mirror.SummaryRow{
		Period:  s.Period,
		Income:  s.TotalIncome,
		Expense: s.TotalExpense,
		Net:     s.Net,
	})
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if err := w.storage.ClearDirtyPeriod(ctx, p); err != nil {
		slog.ErrorContext(ctx, "Failed to clear dirty period", "period", p.String(), "error", err)
		// Don't return error here - the mirror write actually worked
	}

	slog.InfoContext(ctx, "Successfully mirrored period",
		"period", p.String(),
		"mirror_ref", ref,
		"income_cents", s.TotalIncome.Cents,
		"expense_cents", s.TotalExpense.Cents,
		"net_cents", s.Net.Cents)

	return nil
}
