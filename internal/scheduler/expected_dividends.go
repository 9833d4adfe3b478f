package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ExpectedRefresher recomputes stored dividend expectations
type ExpectedRefresher interface {
	RefreshExpected(ctx context.Context) (int, error)
}

// ExpectedDividendsRefreshJob stores the current estimate of each holding's
// annual dividend so the expected income survives provider outages.
type ExpectedDividendsRefreshJob struct {
	refresher ExpectedRefresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewExpectedDividendsRefreshJob creates a new ExpectedDividendsRefreshJob
func NewExpectedDividendsRefreshJob(refresher ExpectedRefresher, timeout time.Duration, log zerolog.Logger) *ExpectedDividendsRefreshJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ExpectedDividendsRefreshJob{
		refresher: refresher,
		timeout:   timeout,
		log:       log.With().Str("job", "expected_dividends_refresh").Logger(),
	}
}

// Name returns the job name
func (j *ExpectedDividendsRefreshJob) Name() string {
	return "expected_dividends_refresh"
}

// Run executes the refresh
func (j *ExpectedDividendsRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.refresher.RefreshExpected(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh expected dividends: %w", err)
	}

	j.log.Info().Int("updated", n).Msg("Expected dividends refreshed")
	return nil
}
