// Package dividends provides dividend estimation, the income summary and
// storage of received and expected dividends.
package dividends

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

// DividendRepository stores received dividends (ledger.db) and expected
// dividend records (portfolio.db).
type DividendRepository struct {
	ledgerDB    *sql.DB // ledger.db - dividends_received (bookkeeping trail)
	portfolioDB *sql.DB // portfolio.db - expected_dividends
	log         zerolog.Logger
}

// receivedColumns is the list of columns for the dividends_received table.
// Column order must match scanReceived().
const receivedColumns = `id, ticker, amount, currency, amount_base, paid_at, created_at, note`

// expectedColumns is the list of columns for the expected_dividends table.
// Column order must match scanExpected().
const expectedColumns = `id, ticker, source, method, annual_amount_base, updated_at`

// NewDividendRepository creates a new dividend repository
func NewDividendRepository(ledgerDB, portfolioDB *sql.DB, log zerolog.Logger) *DividendRepository {
	return &DividendRepository{
		ledgerDB:    ledgerDB,
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "dividend").Logger(),
	}
}

// CreateReceived records a dividend payment. ID and CreatedAt are populated.
// AmountBase must already be set by the caller; it is never recomputed.
func (r *DividendRepository) CreateReceived(ctx context.Context, d *domain.ReceivedDividend) error {
	if d.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}
	if d.PaidAt.IsZero() {
		return fmt.Errorf("%w: paid_at is required", domain.ErrInvalidInput)
	}

	d.ID = uuid.NewString()
	d.Ticker = strings.ToUpper(d.Ticker)
	d.CreatedAt = time.Now().UTC().Truncate(time.Second)

	query := `INSERT INTO dividends_received (` + receivedColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.ledgerDB.ExecContext(ctx, query,
		d.ID,
		d.Ticker,
		d.Amount.String(),
		string(d.Currency),
		d.AmountBase.String(),
		d.PaidAt.Unix(),
		d.CreatedAt.Unix(),
		d.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to create received dividend: %w", err)
	}

	r.log.Info().
		Str("ticker", d.Ticker).
		Str("amount", d.Amount.String()).
		Str("currency", string(d.Currency)).
		Msg("Received dividend recorded")

	return nil
}

// ListReceived returns all received dividends, most recent first
func (r *DividendRepository) ListReceived(ctx context.Context) ([]domain.ReceivedDividend, error) {
	query := `SELECT ` + receivedColumns + ` FROM dividends_received ORDER BY paid_at DESC, created_at DESC`
	return r.queryReceived(ctx, query)
}

// ListReceivedSince returns received dividends paid at or after since, most recent first
func (r *DividendRepository) ListReceivedSince(ctx context.Context, since time.Time) ([]domain.ReceivedDividend, error) {
	query := `SELECT ` + receivedColumns + ` FROM dividends_received WHERE paid_at >= ? ORDER BY paid_at DESC, created_at DESC`
	return r.queryReceived(ctx, query, since.Unix())
}

// DeleteReceived removes a received dividend record
func (r *DividendRepository) DeleteReceived(ctx context.Context, id string) error {
	return deleteByID(ctx, r.ledgerDB, "dividends_received", id)
}

// UpsertExpected inserts or replaces the expected record for (ticker, source).
func (r *DividendRepository) UpsertExpected(ctx context.Context, e *domain.ExpectedDividend) error {
	if e.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}
	if e.Source != domain.ExpectedSourceManual && e.Source != domain.ExpectedSourceEstimate {
		return fmt.Errorf("%w: unknown source %q", domain.ErrInvalidInput, e.Source)
	}

	e.Ticker = strings.ToUpper(e.Ticker)
	e.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO expected_dividends (` + expectedColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, source) DO UPDATE SET
			method = excluded.method,
			annual_amount_base = excluded.annual_amount_base,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err := r.portfolioDB.QueryRowContext(ctx, query,
		e.ID,
		e.Ticker,
		e.Source,
		string(e.Method),
		e.AnnualAmountBase.String(),
		e.UpdatedAt.Unix(),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert expected dividend: %w", err)
	}

	return nil
}

// ListExpected returns expected dividend records, optionally filtered by source
// (empty source returns all).
func (r *DividendRepository) ListExpected(ctx context.Context, source string) ([]domain.ExpectedDividend, error) {
	query := `SELECT ` + expectedColumns + ` FROM expected_dividends`
	var args []interface{}
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY ticker, source`

	rows, err := r.portfolioDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expected dividends: %w", err)
	}
	defer rows.Close()

	var out []domain.ExpectedDividend
	for rows.Next() {
		e, err := scanExpected(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expected dividend: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExpected removes an expected dividend record
func (r *DividendRepository) DeleteExpected(ctx context.Context, id string) error {
	return deleteByID(ctx, r.portfolioDB, "expected_dividends", id)
}

// DeleteExpectedBySourceExcept removes estimate-sourced records for tickers
// no longer held.
func (r *DividendRepository) DeleteExpectedBySourceExcept(ctx context.Context, source string, keep []string) (int64, error) {
	query := `DELETE FROM expected_dividends WHERE source = ?`
	args := []interface{}{source}
	if len(keep) > 0 {
		query += ` AND ticker NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`
		for _, t := range keep {
			args = append(args, strings.ToUpper(t))
		}
	}

	result, err := r.portfolioDB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expected dividends: %w", err)
	}
	return result.RowsAffected()
}

func (r *DividendRepository) queryReceived(ctx context.Context, query string, args ...interface{}) ([]domain.ReceivedDividend, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query received dividends: %w", err)
	}
	defer rows.Close()

	var out []domain.ReceivedDividend
	for rows.Next() {
		d, err := scanReceived(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan received dividend: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReceived(s scanner) (domain.ReceivedDividend, error) {
	var (
		d                  domain.ReceivedDividend
		amount, amountBase string
		currency           string
		paidAt, createdAt  int64
	)
	if err := s.Scan(&d.ID, &d.Ticker, &amount, &currency, &amountBase, &paidAt, &createdAt, &d.Note); err != nil {
		return d, err
	}

	var err error
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return d, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.AmountBase, err = decimal.NewFromString(amountBase); err != nil {
		return d, fmt.Errorf("invalid amount_base %q: %w", amountBase, err)
	}
	d.Currency = domain.Currency(currency)
	d.PaidAt = time.Unix(paidAt, 0).UTC()
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	return d, nil
}

func scanExpected(s scanner) (domain.ExpectedDividend, error) {
	var (
		e         domain.ExpectedDividend
		method    string
		amount    string
		updatedAt int64
	)
	if err := s.Scan(&e.ID, &e.Ticker, &e.Source, &method, &amount, &updatedAt); err != nil {
		return e, err
	}

	var err error
	if e.AnnualAmountBase, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("invalid annual_amount_base %q: %w", amount, err)
	}
	e.Method = domain.EstimateMethod(method)
	e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return e, nil
}

// deleteByID deletes one row and reports domain.ErrNotFound when nothing matched.
func deleteByID(ctx context.Context, db *sql.DB, table, id string) error {
	result, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
