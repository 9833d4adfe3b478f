package clientdata

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob purges cache entries that have been expired for longer than
// the stale grace window.
type CleanupJob struct {
	repo  *Repository
	grace time.Duration
	log   zerolog.Logger
}

// NewCleanupJob creates the cleanup job with the default StaleGrace.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:  repo,
		grace: StaleGrace,
		log:   log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// WithGrace overrides how long expired entries survive. Zero purges every
// expired entry.
func (j *CleanupJob) WithGrace(grace time.Duration) *CleanupJob {
	if grace < 0 {
		grace = 0
	}
	j.grace = grace
	return j
}

// Name implements scheduler.Job.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}

// Run implements scheduler.Job.
func (j *CleanupJob) Run() error {
	start := time.Now()

	counts, err := j.repo.Purge(j.grace)
	if err != nil {
		j.log.Error().Err(err).Msg("Cache purge failed")
		return err
	}

	var purged, remaining, stale int64
	ev := j.log.Info().Dur("grace", j.grace)
	for _, table := range AllTables {
		ev = ev.Int64(table, counts[table])
		purged += counts[table]

		total, expired, err := j.repo.Count(table)
		if err != nil {
			j.log.Warn().Err(err).Str("table", table).Msg("Could not count cache entries")
			continue
		}
		remaining += total
		stale += expired
	}
	ev = ev.Int64("remaining", remaining).Int64("stale", stale)
	ev.Int64("purged", purged).
		Dur("duration", time.Since(start)).
		Msg("Cache purge finished")

	return nil
}
