package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/divtrack/internal/database"
	"github.com/aristath/divtrack/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// holdingColumns is the list of columns for the holdings table.
// Column order must match scanHolding().
const holdingColumns = `id, ticker, shares, cost_basis_per_share, cost_currency, acquired_at`

// HoldingRepository handles holding database operations
type HoldingRepository struct {
	portfolioDB *sql.DB // portfolio.db - holdings
	log         zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(portfolioDB *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "holding").Logger(),
	}
}

// GetAll returns all holdings in acquisition order
func (r *HoldingRepository) GetAll(ctx context.Context) ([]domain.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings ORDER BY acquired_at, rowid`
	return queryHoldings(ctx, r.portfolioDB, query)
}

// GetByTicker returns the lots of a ticker, oldest first
func (r *HoldingRepository) GetByTicker(ctx context.Context, ticker string) ([]domain.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE ticker = ? ORDER BY acquired_at, rowid`
	return queryHoldings(ctx, r.portfolioDB, query, strings.ToUpper(ticker))
}

// GetByID returns a holding by ID, or domain.ErrNotFound
func (r *HoldingRepository) GetByID(ctx context.Context, id string) (*domain.Holding, error) {
	query := `SELECT ` + holdingColumns + ` FROM holdings WHERE id = ?`
	h, err := scanHolding(r.portfolioDB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return &h, nil
}

// Create stores a new holding lot. ID is populated; the ticker is upper-cased.
func (r *HoldingRepository) Create(ctx context.Context, h *domain.Holding) error {
	if err := validateHolding(h); err != nil {
		return err
	}

	h.ID = uuid.NewString()
	h.Ticker = strings.ToUpper(strings.TrimSpace(h.Ticker))
	if h.AcquiredAt.IsZero() {
		h.AcquiredAt = time.Now()
	}
	h.AcquiredAt = h.AcquiredAt.UTC().Truncate(time.Second)

	query := `INSERT INTO holdings (` + holdingColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.portfolioDB.ExecContext(ctx, query,
		h.ID,
		h.Ticker,
		h.Shares.String(),
		h.CostBasisPerShare.String(),
		string(h.CostCurrency),
		h.AcquiredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create holding: %w", err)
	}

	r.log.Info().
		Str("ticker", h.Ticker).
		Str("shares", h.Shares.String()).
		Msg("Holding created")

	return nil
}

// Dispose removes shares of a ticker, consuming the oldest lots first.
// Lots reduced to zero are deleted. Returns domain.ErrInsufficientShares
// without changing anything when fewer shares are held.
func (r *HoldingRepository) Dispose(ctx context.Context, ticker string, shares decimal.Decimal) error {
	if !shares.IsPositive() {
		return fmt.Errorf("%w: shares must be positive", domain.ErrInvalidInput)
	}
	ticker = strings.ToUpper(ticker)

	return database.WithTransactionContext(ctx, r.portfolioDB, func(tx *sql.Tx) error {
		query := `SELECT ` + holdingColumns + ` FROM holdings WHERE ticker = ? ORDER BY acquired_at, rowid`
		rows, err := tx.QueryContext(ctx, query, ticker)
		if err != nil {
			return fmt.Errorf("failed to query lots: %w", err)
		}
		var lots []domain.Holding
		for rows.Next() {
			h, err := scanHolding(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan lot: %w", err)
			}
			lots = append(lots, h)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		held := decimal.Zero
		for _, lot := range lots {
			held = held.Add(lot.Shares)
		}
		if held.LessThan(shares) {
			return fmt.Errorf("%w: %s held %s, disposing %s", domain.ErrInsufficientShares, ticker, held, shares)
		}

		remaining := shares
		for _, lot := range lots {
			if !remaining.IsPositive() {
				break
			}
			if lot.Shares.LessThanOrEqual(remaining) {
				if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, lot.ID); err != nil {
					return fmt.Errorf("failed to delete lot: %w", err)
				}
				remaining = remaining.Sub(lot.Shares)
				continue
			}
			left := lot.Shares.Sub(remaining)
			if _, err := tx.ExecContext(ctx, `UPDATE holdings SET shares = ? WHERE id = ?`, left.String(), lot.ID); err != nil {
				return fmt.Errorf("failed to reduce lot: %w", err)
			}
			remaining = decimal.Zero
		}

		r.log.Info().
			Str("ticker", ticker).
			Str("shares", shares.String()).
			Msg("Holding disposed")
		return nil
	})
}

// Delete removes a holding lot by ID
func (r *HoldingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.portfolioDB.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func validateHolding(h *domain.Holding) error {
	if strings.TrimSpace(h.Ticker) == "" {
		return fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}
	if !h.Shares.IsPositive() {
		return fmt.Errorf("%w: shares must be positive", domain.ErrInvalidInput)
	}
	if h.CostBasisPerShare.IsNegative() {
		return fmt.Errorf("%w: cost basis must not be negative", domain.ErrInvalidInput)
	}
	if h.CostCurrency != "" && !h.CostCurrency.Supported() {
		return fmt.Errorf("%w: unsupported currency %s", domain.ErrInvalidInput, h.CostCurrency)
	}
	return nil
}

func queryHoldings(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]domain.Holding, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s rowScanner) (domain.Holding, error) {
	var (
		h                 domain.Holding
		shares, costBasis string
		currency          string
		acquiredAt        int64
	)
	if err := s.Scan(&h.ID, &h.Ticker, &shares, &costBasis, &currency, &acquiredAt); err != nil {
		return h, err
	}

	var err error
	if h.Shares, err = decimal.NewFromString(shares); err != nil {
		return h, fmt.Errorf("invalid shares %q: %w", shares, err)
	}
	if h.CostBasisPerShare, err = decimal.NewFromString(costBasis); err != nil {
		return h, fmt.Errorf("invalid cost basis %q: %w", costBasis, err)
	}
	h.CostCurrency = domain.Currency(currency)
	h.AcquiredAt = time.Unix(acquiredAt, 0).UTC()
	return h, nil
}
