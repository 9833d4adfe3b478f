// Package cash_flows provides the cash ledger: deposits, withdrawals, dividend
// payouts and trade settlements stored in ledger.db, and per-currency balances
// derived from them.
package cash_flows

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// cashColumns is the list of columns for the cash_entries table.
// Column order must match scanEntry().
const cashColumns = `id, kind, amount, currency, booked_at, note`

// Repository handles cash ledger persistence.
// Entries are append-mostly and form the bookkeeping trail; balances are
// always derived from them, never stored.
type Repository struct {
	ledgerDB *sql.DB        // ledger.db - cash_entries table
	log      zerolog.Logger // Structured logger
}

// ListFilter narrows List. Zero values mean "no restriction".
type ListFilter struct {
	Since time.Time
	Until time.Time
	Kind  domain.CashKind
	Limit int
}

// NewRepository creates a new cash ledger repository.
//
// Parameters:
//   - ledgerDB: Database connection to ledger.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "cash_flows").Logger(),
	}
}

// Create inserts a new cash entry.
// ID is always generated; BookedAt defaults to now when unset.
//
// Parameters:
//   - ctx: Request context
//   - entry: Entry to store, updated in place
//
// Returns:
//   - error: domain.ErrInvalidInput for bad entries, or a database error
func (r *Repository) Create(ctx context.Context, entry *domain.CashEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	entry.ID = uuid.NewString()
	if entry.BookedAt.IsZero() {
		entry.BookedAt = time.Now()
	}
	entry.BookedAt = entry.BookedAt.UTC().Truncate(time.Second)

	query := `INSERT INTO cash_entries (` + cashColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.ledgerDB.ExecContext(ctx, query,
		entry.ID,
		string(entry.Kind),
		entry.Amount.String(),
		string(entry.Currency),
		entry.BookedAt.Unix(),
		entry.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to create cash entry: %w", err)
	}

	r.log.Debug().
		Str("kind", string(entry.Kind)).
		Str("amount", entry.Amount.String()).
		Str("currency", string(entry.Currency)).
		Msg("Cash entry booked")

	return nil
}

// List returns cash entries matching the filter, most recent first.
//
// Parameters:
//   - ctx: Request context
//   - filter: Optional date range, kind and limit
//
// Returns:
//   - []domain.CashEntry: Matching entries (empty slice if none)
//   - error: Error if query fails
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]domain.CashEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if !filter.Since.IsZero() {
		where = append(where, "booked_at >= ?")
		args = append(args, filter.Since.Unix())
	}
	if !filter.Until.IsZero() {
		where = append(where, "booked_at <= ?")
		args = append(args, filter.Until.Unix())
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	query := `SELECT ` + cashColumns + ` FROM cash_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY booked_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.CashEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash entries: %w", err)
	}

	return entries, nil
}

// Balances returns the signed balance per currency.
// Amounts are stored as decimal strings, so summing happens here rather
// than in SQL to keep exact arithmetic.
//
// Returns:
//   - map[domain.Currency]decimal.Decimal: Balance per currency
//   - error: Error if query fails
func (r *Repository) Balances(ctx context.Context) (map[domain.Currency]decimal.Decimal, error) {
	entries, err := r.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}

	balances := make(map[domain.Currency]decimal.Decimal)
	for _, e := range entries {
		balances[e.Currency] = balances[e.Currency].Add(e.SignedAmount())
	}
	return balances, nil
}

// Delete removes a cash entry.
//
// Returns:
//   - error: domain.ErrNotFound if no entry has this ID
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.ledgerDB.ExecContext(ctx, "DELETE FROM cash_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete cash entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func validateEntry(e *domain.CashEntry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown cash kind %q", domain.ErrInvalidInput, e.Kind)
	}
	if e.Currency == "" {
		return fmt.Errorf("%w: currency is required", domain.ErrInvalidInput)
	}
	if e.Kind != domain.CashAdjustment && e.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative for %s", domain.ErrInvalidInput, e.Kind)
	}
	if e.Amount.IsZero() {
		return fmt.Errorf("%w: amount must not be zero", domain.ErrInvalidInput)
	}
	return nil
}

func scanEntry(rows *sql.Rows) (domain.CashEntry, error) {
	var (
		e        domain.CashEntry
		kind     string
		amount   string
		currency string
		bookedAt int64
	)
	if err := rows.Scan(&e.ID, &kind, &amount, &currency, &bookedAt, &e.Note); err != nil {
		return e, err
	}

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	e.Kind = domain.CashKind(kind)
	e.Currency = domain.Currency(currency)
	e.BookedAt = time.Unix(bookedAt, 0).UTC()
	return e, nil
}
