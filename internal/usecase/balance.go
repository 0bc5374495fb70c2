package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
)

// BalanceAccessor is the only writer of user balances. Every mutation is a
// single conditional statement in the repository, so concurrent deltas on the
// same account serialize in the database.
type BalanceAccessor struct {
	users UserRepository
}

// NewBalanceAccessor creates a BalanceAccessor over users.
func NewBalanceAccessor(users UserRepository) *BalanceAccessor {
	return &BalanceAccessor{users: users}
}

// ApplyCompletionDelta applies the balance effect of an entry of entryType
// reaching COMPLETED. Withdrawals were reserved at request time and are a no-op.
func (b *BalanceAccessor) ApplyCompletionDelta(
	ctx context.Context,
	tx Transaction,
	userID string,
	entryType domain.EntryType,
	amount decimal.Decimal,
	at time.Time,
) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}

	shape := domain.LedgerEntry{Type: entryType}
	switch {
	case shape.IsCredit():
		return b.users.Credit(ctx, tx, userID, amount, at)
	case shape.IsDebitOnCompletion():
		return b.users.Debit(ctx, tx, userID, amount, at)
	case entryType == domain.EntryTypeWithdrawal:
		return nil
	}
	return fmt.Errorf("%w: %q", domain.ErrInvalidEntryType, entryType)
}

// Reserve debits amount immediately for a withdrawal request.
func (b *BalanceAccessor) Reserve(ctx context.Context, tx Transaction, userID string, amount decimal.Decimal, at time.Time) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	return b.users.Debit(ctx, tx, userID, amount, at)
}

// Release returns a reservation to the balance when a withdrawal does not go through.
func (b *BalanceAccessor) Release(ctx context.Context, tx Transaction, userID string, amount decimal.Decimal, at time.Time) error {
	if err := domain.ValidateAmount(amount); err != nil {
		return err
	}
	return b.users.Credit(ctx, tx, userID, amount, at)
}
