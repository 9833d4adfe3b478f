package clientdata

import "time"

const (
	// TTLDividends is how long fetched dividend data counts as fresh.
	// Declarations and payout history change a few times a year.
	TTLDividends = 12 * time.Hour

	// StaleGrace is how long an expired entry is kept as a fallback for
	// upstream outages before the cleanup job removes it.
	StaleGrace = 7 * 24 * time.Hour
)
