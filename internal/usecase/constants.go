package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DriftTolerance is the default reconciliation tolerance, covering
	// rounding left behind by legacy float imports.
	DriftTolerance = "0.01"

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// BalanceCacheTTL bounds staleness of the read-through balance cache.
	BalanceCacheTTL = 5 * time.Second
)
