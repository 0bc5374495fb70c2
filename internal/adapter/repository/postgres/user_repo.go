package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/postgres/generated"
	"github.com/iho/betledger/internal/usecase"
)

// UserRepository implements usecase.UserRepository.
type UserRepository struct {
	queries *generated.Queries
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return newUserRepository(pool)
}

func newUserRepository(db generated.DBTX) *UserRepository {
	return &UserRepository{queries: generated.New(db)}
}

// Create inserts a new user account.
func (r *UserRepository) Create(ctx context.Context, user *domain.UserAccount) error {
	err := r.queries.CreateUser(ctx, generated.CreateUserParams{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Document:  user.Document,
		Role:      string(user.Role),
		Status:    string(user.Status),
		Balance:   decimalToNumeric(user.Balance),
		CreatedAt: timeToPgTimestamptz(user.CreatedAt),
		UpdatedAt: timeToPgTimestamptz(user.UpdatedAt),
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s is already registered", domain.ErrValidation, user.Email)
	}

	return err
}

// GetByID retrieves a user account by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	row, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		return nil, err
	}

	return rowToUser(row), nil
}

// GetByIDForUpdate retrieves a user account with a FOR UPDATE lock.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.UserAccount, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetUserByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		return nil, err
	}

	return rowToUser(row), nil
}

// UpdateStatus changes the administrative status of an account.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error {
	n, err := r.queries.UpdateUserStatus(ctx, generated.UpdateUserStatusParams{
		ID:        id,
		Status:    string(status),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Credit adds amount to the stored balance.
func (r *UserRepository) Credit(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal, updatedAt time.Time) error {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	n, err := queries.CreditUser(ctx, generated.CreditUserParams{
		ID:        id,
		Amount:    decimalToNumeric(amount),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// Debit subtracts amount only when the stored balance covers it.
func (r *UserRepository) Debit(ctx context.Context, tx usecase.Transaction, id string, amount decimal.Decimal, updatedAt time.Time) error {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	n, err := queries.DebitUser(ctx, generated.DebitUserParams{
		ID:        id,
		Amount:    decimalToNumeric(amount),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or the guard rejected the debit.
		if _, err := queries.GetUserByID(ctx, id); errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return domain.ErrInsufficientFunds
	}

	return nil
}

func rowToUser(row generated.User) *domain.UserAccount {
	return &domain.UserAccount{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		Document:  row.Document,
		Role:      domain.Role(row.Role),
		Status:    domain.AccountStatus(row.Status),
		Balance:   numericToDecimal(row.Balance),
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}
