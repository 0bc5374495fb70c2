package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/domain"
)

func TestCreatePending_ReferenceIsUnique(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	h.pendingDeposit(t, "u1", "PIX_30_u1", 100)

	_, err := h.entries.CreatePending(ctx, &domain.LedgerEntry{
		UserID:            "u1",
		Type:              domain.EntryTypeDeposit,
		Amount:            amt(999),
		PaymentMethod:     domain.PaymentMethodPix,
		ExternalReference: "PIX_30_u1",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)

	n, err := h.store.Entries().CountByUser(ctx, domain.EntryFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCreatePending_Validation(t *testing.T) {
	tests := []struct {
		name  string
		entry domain.LedgerEntry
		want  error
	}{
		{
			name:  "zero amount",
			entry: domain.LedgerEntry{UserID: "u1", Type: domain.EntryTypeDeposit, PaymentMethod: domain.PaymentMethodPix},
			want:  domain.ErrInvalidAmount,
		},
		{
			name:  "unknown type",
			entry: domain.LedgerEntry{UserID: "u1", Type: "REFUND", Amount: amt(1)},
			want:  domain.ErrInvalidEntryType,
		},
		{
			name:  "deposit without method",
			entry: domain.LedgerEntry{UserID: "u1", Type: domain.EntryTypeDeposit, Amount: amt(1)},
			want:  domain.ErrInvalidPaymentMethod,
		},
		{
			name:  "malformed reference",
			entry: domain.LedgerEntry{UserID: "u1", Type: domain.EntryTypeBet, Amount: amt(1), ExternalReference: "has spaces"},
			want:  domain.ErrInvalidReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			e := tt.entry
			_, err := h.entries.CreatePending(context.Background(), &e)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestEntryQueries_OwnerScopedAndPaged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	h.seedUser(t, "u2", 0)

	var last *domain.LedgerEntry
	for i, ref := range []string{"R1", "R2", "R3"} {
		h.clock.Advance(time.Duration(i) * time.Second)
		last = h.pendingDeposit(t, "u1", ref, 10)
	}
	h.pendingDeposit(t, "u2", "R4", 10)

	got, err := h.entries.GetEntry(ctx, last.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "R3", got.ExternalReference)

	_, err = h.entries.GetEntry(ctx, last.ID, "u2")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = h.entries.GetByReference(ctx, "R3", "u2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, err := h.entries.ListByUser(ctx, domain.EntryFilter{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "R3", page.Entries[0].ExternalReference)

	page, err = h.entries.ListByUser(ctx, domain.EntryFilter{UserID: "u1", Type: domain.EntryTypeWithdrawal})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, 50, page.Limit)

	_, err = h.entries.ListByUser(ctx, domain.EntryFilter{UserID: "u1", Type: "NOPE"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntryType)
}
