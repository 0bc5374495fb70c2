package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManager_DefaultsToReadCommitted(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	// Deferred rollbacks after a commit must not reach the database.
	require.NoError(t, tx.Rollback(context.Background()))
	assertExpectations(t, pool)
}

func TestTxManager_LockTimeout(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	pool.ExpectExec("SET LOCAL lock_timeout = '1500ms'").WillReturnResult(pgxmock.NewResult("SET", 0))
	pool.ExpectRollback()

	m := newTxManagerWithPool(pool, WithIsolation(pgx.Serializable), WithLockTimeout(1500*time.Millisecond))
	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
	require.NoError(t, tx.Rollback(context.Background()))
	assertExpectations(t, pool)
}

func TestTxManager_LockTimeoutFailureRollsBack(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	pool.ExpectExec("SET LOCAL lock_timeout").WillReturnError(errors.New("permission denied"))
	pool.ExpectRollback()

	_, err := newTxManagerWithPool(pool, WithLockTimeout(time.Second)).Begin(context.Background())
	assert.ErrorContains(t, err, "set lock timeout")
	assertExpectations(t, pool)
}

func TestTxManager_BeginError(t *testing.T) {
	pool := newMockPool(t)
	boom := errors.New("begin failed")
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(boom)

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, tx)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	require.NoError(t, pool.ExpectationsWereMet())
}

// expectBegin expects a transaction opened by a default TxManager.
func expectBegin(pool pgxmock.PgxPoolIface) {
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}
