package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
)

// UserUseCase handles player account management.
type UserUseCase struct {
	userRepo UserRepository
	idGen    IDGenerator
	clock    Clock
}

// NewUserUseCase creates a new user use case
func NewUserUseCase(userRepo UserRepository, idGen IDGenerator, clock Clock) *UserUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &UserUseCase{
		userRepo: userRepo,
		idGen:    idGen,
		clock:    clock,
	}
}

// CreateUserInput represents input for creating a user
type CreateUserInput struct {
	Name     string
	Email    string
	Phone    string
	Document string
	Role     domain.Role
}

// CreateUser opens an ACTIVE account with a zero balance.
// Money only ever arrives through ledger entries.
func (uc *UserUseCase) CreateUser(ctx context.Context, input CreateUserInput) (*domain.UserAccount, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	role := input.Role
	if role == "" {
		role = domain.RolePlayer
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: invalid role %q", domain.ErrValidation, role)
	}

	now := uc.clock.Now()
	user := &domain.UserAccount{
		ID:        uc.idGen.Generate(),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:     input.Phone,
		Document:  input.Document,
		Role:      role,
		Status:    domain.AccountStatusActive,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (uc *UserUseCase) GetUser(ctx context.Context, id string) (*domain.UserAccount, error) {
	return uc.userRepo.GetByID(ctx, id)
}

// SetStatus activates or blocks an account.
func (uc *UserUseCase) SetStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.UserAccount, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid account status %q", domain.ErrValidation, status)
	}
	if err := uc.userRepo.UpdateStatus(ctx, id, status, uc.clock.Now()); err != nil {
		return nil, err
	}
	return uc.userRepo.GetByID(ctx, id)
}
