package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable ledger. It implements the entry
// writer, updater, reader and balance store ports, plus the dirty
// period queue consumed by the mirror worker.
type SQLiteRepository struct {
	db     *sql.DB
	window core.DateWindow
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, window core.DateWindow) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		window: window,
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddEntry implements ledger.EntryWriter. The database assigns the
// identifier; AUTOINCREMENT guarantees that identifiers of deleted
// rows are never reissued.
func (r *SQLiteRepository) AddEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(r.window, r.now()); err != nil {
		return core.Entry{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (amount_cents, entry_date, category, note) VALUES (?, ?, ?, ?)`,
		e.Amount.Cents, e.Date.Format("2006-01-02"), e.Category, e.Note)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("read inserted entry id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.Format("2006-01-02"),
		"category", e.Category)

	return e, nil
}

// UpdateEntry implements ledger.EntryUpdater. The row is replaced in a
// single statement, so readers observe the old entry or the new one.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(r.window, r.now()); err != nil {
		return core.Entry{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE entries
		 SET amount_cents = ?, entry_date = ?, category = ?, note = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		e.Amount.Cents, e.Date.Format("2006-01-02"), e.Category, e.Note, e.ID)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry rows affected: %w", err)
	}
	if affected == 0 {
		return core.Entry{}, fmt.Errorf("entry %d: %w", e.ID, core.ErrEntryNotFound)
	}

	return e, nil
}

// DeleteEntry implements ledger.EntryUpdater.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %d: %w", id, core.ErrEntryNotFound)
	}

	slog.InfoContext(ctx, "Entry deleted from SQLite", "id", id)
	return nil
}

// GetEntry implements ledger.EntryReader.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, amount_cents, entry_date, category, note FROM entries WHERE id = ?`, id)

	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("entry %d: %w", id, core.ErrEntryNotFound)
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries implements ledger.EntryReader. Entries come back in
// insertion order.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_cents, entry_date, category, note FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(ctx, rows)
}

// ListEntriesInRange implements ledger.EntryReader. Dates are stored
// as ISO strings, so lexicographic comparison matches chronological
// comparison.
func (r *SQLiteRepository) ListEntriesInRange(ctx context.Context, pr core.PeriodRange) ([]core.Entry, error) {
	from := pr.From.Start().Format("2006-01-02")
	until := pr.To.Next().Start().Format("2006-01-02")

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_cents, entry_date, category, note
		 FROM entries
		 WHERE entry_date >= ? AND entry_date < ?
		 ORDER BY entry_date, id`,
		from, until)
	if err != nil {
		return nil, fmt.Errorf("list entries in range: %w", err)
	}
	defer rows.Close()

	return collectEntries(ctx, rows)
}

// SetBalance implements ledger.BalanceStore. The table holds a single
// row that is inserted on first use and replaced afterwards.
func (r *SQLiteRepository) SetBalance(ctx context.Context, amount core.Money) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO balance (id, amount_cents) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = CURRENT_TIMESTAMP`,
		amount.Cents)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}

	slog.InfoContext(ctx, "Balance saved to SQLite", "amount_cents", amount.Cents)
	return nil
}

// GetBalance implements ledger.BalanceStore. A database without a
// recorded balance reports zero.
func (r *SQLiteRepository) GetBalance(ctx context.Context) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `SELECT amount_cents FROM balance WHERE id = 1`).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// MarkPeriodDirty queues a month for the mirror worker. Marking an
// already dirty month just refreshes its timestamp.
func (r *SQLiteRepository) MarkPeriodDirty(ctx context.Context, p core.Period) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dirty_periods (period) VALUES (?)
		 ON CONFLICT(period) DO UPDATE SET marked_at = CURRENT_TIMESTAMP`,
		p.String())
	if err != nil {
		return fmt.Errorf("mark period dirty: %w", err)
	}
	return nil
}

// ListDirtyPeriods returns up to limit months waiting to be mirrored,
// oldest month first.
func (r *SQLiteRepository) ListDirtyPeriods(ctx context.Context, limit int) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT period FROM dirty_periods ORDER BY period LIMIT ?`, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list dirty periods: %w", err)
	}
	defer rows.Close()

	var periods []core.Period
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan dirty period: %w", err)
		}
		p, err := core.ParsePeriod(s)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed dirty period", "period", s)
			continue
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dirty periods: %w", err)
	}

	return periods, nil
}

// ClearDirtyPeriod removes a month from the mirror queue after it has
// been written to the mirror.
func (r *SQLiteRepository) ClearDirtyPeriod(ctx context.Context, p core.Period) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dirty_periods WHERE period = ?`, p.String())
	if err != nil {
		return fmt.Errorf("clear dirty period: %w", err)
	}
	return nil
}

// scanEntry builds an entry from one row. The scan function signature
// matches both sql.Row.Scan and sql.Rows.Scan.
func scanEntry(scan func(...any) error) (core.Entry, error) {
	var (
		e       core.Entry
		cents   int64
		dateStr string
	)
	if err := scan(&e.ID, &cents, &dateStr, &e.Category, &e.Note); err != nil {
		return core.Entry{}, err
	}

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Entry{}, fmt.Errorf("entry %d has malformed date %q: %w", e.ID, dateStr, err)
	}

	e.Amount = core.Money{Cents: cents}
	e.Date = date
	return e, nil
}

// collectEntries drains rows, skipping rows that no longer parse
// instead of failing the whole read.
func collectEntries(ctx context.Context, rows *sql.Rows) ([]core.Entry, error) {
	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			if errors.Is(err, core.ErrInvalidDate) {
				slog.WarnContext(ctx, "Skipping entry with malformed date", "error", err)
				continue
			}
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}
