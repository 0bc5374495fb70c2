package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/betledger/internal/usecase"
)

type pgxPool interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager. Every ledger write runs
// in read committed with row locks; lock waits are bounded so a stuck
// settlement surfaces as a retryable error instead of piling up requests.
type TxManager struct {
	pool        pgxPool
	isoLevel    pgx.TxIsoLevel
	lockTimeout time.Duration
}

// TxOption configures a TxManager.
type TxOption func(*TxManager)

// WithIsolation overrides the isolation level.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(m *TxManager) { m.isoLevel = level }
}

// WithLockTimeout sets lock_timeout for each transaction. Zero leaves the
// server default.
func WithLockTimeout(d time.Duration) TxOption {
	return func(m *TxManager) { m.lockTimeout = d }
}

// NewTxManager creates a TxManager over pool.
func NewTxManager(pool *pgxpool.Pool, opts ...TxOption) *TxManager {
	return newTxManagerWithPool(pool, opts...)
}

func newTxManagerWithPool(pool pgxPool, opts ...TxOption) *TxManager {
	m := &TxManager{pool: pool, isoLevel: pgx.ReadCommitted}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Begin starts a transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: m.isoLevel})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if m.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx   pgx.Tx
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return err
	}
	t.done = true
	return nil
}

// Rollback rolls back the transaction. It is a no-op after Commit, so
// callers can defer it unconditionally.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	err := t.tx.Rollback(ctx)
	t.done = true
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}
