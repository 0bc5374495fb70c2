package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// PixStatusPaid is the only gateway status that settles a deposit.
	PixStatusPaid = "PAID"

	// Attribution delivery defaults.
	DefaultAttributionAttempts       = 3
	DefaultAttributionBackoff        = 2 * time.Second
	DefaultAttributionAttemptTimeout = 10 * time.Second
)

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
