package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// EntryService orchestrates entry mutations across SQLite and AMQP
type EntryService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewEntryService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *EntryService {
	return &EntryService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateEntry saves an entry locally, marks its month for mirroring and
// publishes a change event
func (s *EntryService) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	// Save to SQLite first (fast, reliable)
	saved, err := s.storage.AddEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	period := core.PeriodOf(saved.Date)
	s.markDirty(ctx, period)

	// Publish async change event (non-blocking)
	if err := s.publishEvent(ctx, amqp.OpEntryCreated, saved.ID, period); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry event",
			"op", amqp.OpEntryCreated, "id", saved.ID, "error", err)
		// Don't fail the request - entry is saved locally
	}

	return saved, nil
}

// UpdateEntry replaces an entry and marks both the month it left and
// the month it landed in
func (s *EntryService) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	old, err := s.storage.GetEntry(ctx, e.ID)
	if err != nil {
		return core.Entry{}, err
	}

	updated, err := s.storage.UpdateEntry(ctx, e)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	periods := []core.Period{core.PeriodOf(updated.Date)}
	if oldPeriod := core.PeriodOf(old.Date); oldPeriod != periods[0] {
		periods = append(periods, oldPeriod)
	}
	for _, p := range periods {
		s.markDirty(ctx, p)
	}

	if err := s.publishEvent(ctx, amqp.OpEntryUpdated, updated.ID, periods...); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry event",
			"op", amqp.OpEntryUpdated, "id", updated.ID, "error", err)
		// Don't fail the request - entry is updated locally
	}

	return updated, nil
}

// DeleteEntry removes an entry and marks the month it belonged to
func (s *EntryService) DeleteEntry(ctx context.Context, id int64) error {
	old, err := s.storage.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	period := core.PeriodOf(old.Date)
	s.markDirty(ctx, period)

	if err := s.publishEvent(ctx, amqp.OpEntryDeleted, id, period); err != nil {
		slog.ErrorContext(ctx, "Failed to publish entry event",
			"op", amqp.OpEntryDeleted, "id", id, "error", err)
		// Don't fail the request - entry is deleted locally
	}

	return nil
}

// markDirty queues the month for the mirror worker. A failed mark is
// logged and absorbed; the write itself already succeeded.
func (s *EntryService) markDirty(ctx context.Context, p core.Period) {
	if err := s.storage.MarkPeriodDirty(ctx, p); err != nil {
		slog.ErrorContext(ctx, "Failed to mark period dirty",
			"period", p.String(), "error", err)
	}
}

func (s *EntryService) publishEvent(ctx context.Context, op string, id int64, periods ...core.Period) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping entry event")
		return nil
	}

	return s.amqpClient.PublishEntryEvent(ctx, op, id, periods)
}

// Close closes both storage and AMQP connections
func (s *EntryService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close entry service: %v", errs)
	}

	return nil
}
