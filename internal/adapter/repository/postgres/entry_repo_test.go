package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/domain"
)

var entryColumns = []string{
	"id", "user_id", "type", "amount", "status", "payment_method",
	"external_reference", "provider_transaction_id", "description",
	"attribution_params", "metadata", "created_at", "updated_at",
}

func TestEntryRepositoryCreateInTransaction(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(t)
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	expectBegin(pool)
	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WithArgs("e1", "u1", "DEPOSIT", pgxmock.AnyArg(), "PENDING", "PIX",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "PIX deposit",
			[]byte(`{"utm_source":"google"}`), []byte(`{"qrCode":"000201"}`),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	tx, err := newTxManagerWithPool(pool).Begin(ctx)
	require.NoError(t, err)

	err = newEntryRepository(pool).Create(ctx, tx, &domain.LedgerEntry{
		ID:                "e1",
		UserID:            "u1",
		Type:              domain.EntryTypeDeposit,
		Amount:            decimal.RequireFromString("100.50"),
		Status:            domain.EntryStatusPending,
		PaymentMethod:     domain.PaymentMethodPix,
		ExternalReference: "PIX_1_u1",
		Description:       "PIX deposit",
		AttributionParams: domain.AttributionParams{UTMSource: "google"},
		Metadata:          domain.Metadata{domain.MetaQRCode: "000201"},
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assertExpectations(t, pool)
}

func TestEntryRepositoryCreateDuplicateReference(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_entries")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "ledger_entries_external_reference_key"})

	err := newEntryRepository(pool).Create(context.Background(), nil, &domain.LedgerEntry{
		ID:                "e2",
		UserID:            "u1",
		Type:              domain.EntryTypeDeposit,
		Amount:            decimal.NewFromInt(10),
		Status:            domain.EntryStatusPending,
		ExternalReference: "PIX_1_u1",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
	assertExpectations(t, pool)
}

func TestEntryRepositoryGetByIDMapsRow(t *testing.T) {
	pool := newMockPool(t)
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	pool.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows(entryColumns).AddRow(
			"e1", "u1", "WITHDRAWAL", "250.75", "PENDING", "PIX",
			"W-1", nil, "PIX withdrawal",
			[]byte(`{}`), []byte(`{"pixKey":"ana@example.com"}`), now, now,
		))

	entry, err := newEntryRepository(pool).GetByID(context.Background(), "e1")
	require.NoError(t, err)

	assert.Equal(t, domain.EntryTypeWithdrawal, entry.Type)
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("250.75")), entry.Amount.String())
	assert.Equal(t, "W-1", entry.ExternalReference)
	assert.Empty(t, entry.ProviderTransactionID)
	assert.Equal(t, "ana@example.com", entry.Metadata.String(domain.MetaPixKey))
	assert.True(t, entry.HoldsReservation())
	assertExpectations(t, pool)
}

func TestEntryRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := newEntryRepository(pool).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEntryRepositoryCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("moved", func(t *testing.T) {
		pool := newMockPool(t)
		pool.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
			WithArgs("e1", "PENDING", "COMPLETED", []byte(`{"referenceMatch":"reference"}`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := newEntryRepository(pool).CompareAndSetStatus(ctx, nil, "e1",
			domain.EntryStatusPending, domain.EntryStatusCompleted,
			domain.Metadata{domain.MetaReferenceMatch: domain.ReferenceMatchExternal}, now)
		require.NoError(t, err)
		assert.True(t, ok)
		assertExpectations(t, pool)
	})

	t.Run("lost the race", func(t *testing.T) {
		pool := newMockPool(t)
		pool.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
			WithArgs("e1", "PENDING", "COMPLETED", []byte(`{}`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		ok, err := newEntryRepository(pool).CompareAndSetStatus(ctx, nil, "e1",
			domain.EntryStatusPending, domain.EntryStatusCompleted, nil, now)
		require.NoError(t, err)
		assert.False(t, ok)
		assertExpectations(t, pool)
	})
}

func TestEntryRepositorySums(t *testing.T) {
	ctx := context.Background()
	pool := newMockPool(t)
	since := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)

	pool.ExpectQuery(regexp.QuoteMeta("type = 'WITHDRAWAL' AND created_at >= $2")).
		WithArgs("u1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"total"}).AddRow("9000"))
	pool.ExpectQuery(regexp.QuoteMeta("SUM(CASE")).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"total"}).AddRow("-12.5"))

	repo := newEntryRepository(pool)

	used, err := repo.SumWithdrawalsSince(ctx, nil, "u1", since)
	require.NoError(t, err)
	assert.True(t, used.Equal(decimal.NewFromInt(9000)))

	effects, err := repo.SumBalanceEffects(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, effects.Equal(decimal.RequireFromString("-12.5")))
	assertExpectations(t, pool)
}

func TestEntryRepositoryListByUserPassesFilters(t *testing.T) {
	pool := newMockPool(t)
	now := time.Now()

	pool.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs("u1", pgxmock.AnyArg(), pgxmock.AnyArg(), int32(20), int32(40)).
		WillReturnRows(pgxmock.NewRows(entryColumns).
			AddRow("e2", "u1", "BET", "5", "COMPLETED", "CREDIT", nil, nil, "", []byte(`{}`), []byte(`{}`), now, now).
			AddRow("e1", "u1", "BET", "7", "COMPLETED", "CREDIT", nil, nil, "", []byte(`{}`), []byte(`{}`), now, now))

	entries, err := newEntryRepository(pool).ListByUser(context.Background(), domain.EntryFilter{
		UserID: "u1",
		Type:   domain.EntryTypeBet,
		Limit:  20,
		Offset: 40,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assertExpectations(t, pool)
}

func TestEntryRepositoryRejectsForeignTransaction(t *testing.T) {
	pool := newMockPool(t)

	_, err := newEntryRepository(pool).GetByIDForUpdate(context.Background(), foreignTx{}, "e1")
	assert.True(t, errors.Is(err, errForeignTransaction))
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }
