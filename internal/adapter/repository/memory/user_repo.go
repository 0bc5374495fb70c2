package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// UserRepository implements usecase.UserRepository.
type UserRepository struct {
	store *Store
}

func userLockKey(id string) string { return "user:" + id }

// Create stores a new account.
func (r *UserRepository) Create(_ context.Context, user *domain.UserAccount) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; ok {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	cp := *user
	r.store.users[user.ID] = &cp
	return nil
}

// GetByID returns a copy of the account.
func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.UserAccount, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByIDForUpdate locks the account row for the rest of tx.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.UserAccount, error) {
	if t := asTx(tx); t != nil {
		if err := t.lock(ctx, userLockKey(id)); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

// UpdateStatus changes the account status.
func (r *UserRepository) UpdateStatus(_ context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Status = status
	u.UpdatedAt = updatedAt
	return nil
}

// Credit adds amount to the balance.
func (r *UserRepository) Credit(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal, updatedAt time.Time) error {
	return r.apply(ctx, tx, id, amount, updatedAt, false)
}

// Debit subtracts amount if the balance covers it.
func (r *UserRepository) Debit(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal, updatedAt time.Time) error {
	return r.apply(ctx, tx, id, amount.Neg(), updatedAt, true)
}

// apply takes the row lock the way an UPDATE does: until the end of tx, or for
// this write alone when tx is nil. Holding it makes restoring the previous
// balance on rollback exact.
func (r *UserRepository) apply(ctx context.Context, tx usecase.Transaction, id string, delta decimal.Decimal, updatedAt time.Time, guarded bool) error {
	t := asTx(tx)
	if t != nil {
		if err := t.lock(ctx, userLockKey(id)); err != nil {
			return err
		}
	} else {
		unlock, err := r.store.lockRow(ctx, userLockKey(id))
		if err != nil {
			return err
		}
		defer unlock()
	}

	r.store.mu.Lock()
	u, ok := r.store.users[id]
	if !ok {
		r.store.mu.Unlock()
		return domain.ErrUserNotFound
	}
	next := u.Balance.Add(delta)
	if guarded && next.IsNegative() {
		r.store.mu.Unlock()
		return domain.ErrInsufficientFunds
	}
	prevBalance, prevUpdated := u.Balance, u.UpdatedAt
	u.Balance = next
	u.UpdatedAt = updatedAt
	r.store.mu.Unlock()

	if t != nil {
		t.onRollback(func() {
			u.Balance = prevBalance
			u.UpdatedAt = prevUpdated
		})
	}
	return nil
}
