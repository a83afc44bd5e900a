package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// Deadlocks happen when two transactions touch the same pair of
// balance rows in opposite order; PostgreSQL aborts one side and that
// side is safe to re-run from Begin.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// RetryPolicy bounds how long a contended transaction keeps retrying.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy keeps contention retries well under a request
// timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxElapsed:      10 * time.Second,
	}
}

// Retrier re-runs balance-row transactions aborted by lock contention.
type Retrier struct {
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetrier creates a Retrier with the default policy.
func NewRetrier() *Retrier {
	return NewRetrierWithPolicy(DefaultRetryPolicy(), slog.Default())
}

// NewRetrierWithPolicy creates a Retrier with an explicit policy.
func NewRetrierWithPolicy(policy RetryPolicy, logger *slog.Logger) *Retrier {
	return &Retrier{policy: policy, logger: logger}
}

// Retry runs operation, re-running it with exponential backoff while
// it fails with a contention error. Any other error stops immediately.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	attempt := 0

	run := func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}

		attempt++
		r.logger.Warn("transaction aborted by contention, retrying",
			"error", err,
			"attempt", attempt,
		)

		return err
	}

	return backoff.Retry(run, backoff.WithContext(r.newBackOff(), ctx))
}

func (r *Retrier) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = r.policy.MaxElapsed

	return backoff.WithMaxRetries(b, r.policy.MaxAttempts)
}

// retryable reports whether the transaction failed on lock contention
// rather than on its own merits.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgErrDeadlock || pgErr.Code == pgErrSerializationFailure
}
