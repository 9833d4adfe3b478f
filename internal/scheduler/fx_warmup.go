package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/rs/zerolog"
)

// HoldingLister reads current holdings
type HoldingLister interface {
	GetAll(ctx context.Context) ([]domain.Holding, error)
}

// RateWarmer pre-loads exchange rates
type RateWarmer interface {
	Warm(ctx context.Context, codes []domain.Currency)
}

// FXWarmupJob keeps the exchange rate cache warm for every currency the
// portfolio holds, so requests rarely wait on a live FX fetch.
type FXWarmupJob struct {
	holdings HoldingLister
	rates    RateWarmer
	timeout  time.Duration
	log      zerolog.Logger
}

// NewFXWarmupJob creates a new FXWarmupJob
func NewFXWarmupJob(holdings HoldingLister, rates RateWarmer, timeout time.Duration, log zerolog.Logger) *FXWarmupJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FXWarmupJob{
		holdings: holdings,
		rates:    rates,
		timeout:  timeout,
		log:      log.With().Str("job", "fx_warmup").Logger(),
	}
}

// Name returns the job name
func (j *FXWarmupJob) Name() string {
	return "fx_warmup"
}

// Run warms the rate of each held currency
func (j *FXWarmupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	holdings, err := j.holdings.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load holdings: %w", err)
	}

	seen := make(map[domain.Currency]bool)
	var codes []domain.Currency
	for _, h := range holdings {
		cur := domain.ResolveCurrency(h.CostCurrency, h.Ticker)
		if !seen[cur] {
			seen[cur] = true
			codes = append(codes, cur)
		}
	}

	j.rates.Warm(ctx, codes)

	j.log.Debug().Int("currencies", len(codes)).Msg("Exchange rates warmed")
	return nil
}
