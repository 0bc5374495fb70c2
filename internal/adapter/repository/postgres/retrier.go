package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// SQLSTATE codes that are safe to retry: the whole transaction is replayed,
// so a settlement that lost a lock race simply runs again.
const (
	sqlStateDeadlock         = "40P01"
	sqlStateSerialization    = "40001"
	sqlStateLockNotAvailable = "55P03"
)

// RetryPolicy bounds how long a transaction is replayed.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy is used by NewRetrier.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier implements usecase.Retrier.
type Retrier struct {
	policy  RetryPolicy
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewRetrier returns a Retrier using DefaultRetryPolicy.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return NewRetrierWithPolicy(DefaultRetryPolicy(), logger)
}

// NewRetrierWithPolicy returns a Retrier using policy.
func NewRetrierWithPolicy(policy RetryPolicy, logger zerolog.Logger) *Retrier {
	return &Retrier{policy: policy, logger: logger}
}

// WithMetrics counts retries per SQLSTATE on m.
func (r *Retrier) WithMetrics(m *metrics.Metrics) *Retrier {
	r.metrics = m
	return r
}

// Retry runs operation until it succeeds, fails with a non-transient error,
// or the policy is exhausted.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = r.policy.MaxElapsedTime

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}

		code, ok := transientCode(err)
		if !ok || attempt > r.policy.MaxRetries {
			return backoff.Permanent(err)
		}

		if r.metrics != nil {
			r.metrics.DBRetries.WithLabelValues(code).Inc()
		}
		r.logger.Warn().
			Err(err).
			Str("sqlstate", code).
			Int("attempt", attempt).
			Msg("transient database error, replaying transaction")
		return err
	}, backoff.WithContext(b, ctx))
}

func transientCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case sqlStateDeadlock, sqlStateSerialization, sqlStateLockNotAvailable:
		return pgErr.Code, true
	}
	return "", false
}
