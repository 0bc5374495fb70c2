package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// AdminService defines the balance administration operations.
type AdminService interface {
	AdjustBalance(ctx context.Context, userID string, target decimal.Decimal, reason string) (*usecase.AdjustmentResult, error)
	CheckConsistency(ctx context.Context, userID string) (*usecase.ConsistencyReport, error)
}

// UserService defines the account administration operations.
type UserService interface {
	CreateUser(ctx context.Context, input usecase.CreateUserInput) (*domain.UserAccount, error)
	GetUser(ctx context.Context, id string) (*domain.UserAccount, error)
	SetStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.UserAccount, error)
}

// AdminHandler handles operator endpoints for users and balances.
type AdminHandler struct {
	admin AdminService
	users UserService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin AdminService, users UserService) *AdminHandler {
	return &AdminHandler{admin: admin, users: users}
}

// CreateUser opens an account with a zero balance.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.UserFromDomain(user))
}

// GetUser retrieves an account by ID.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get user", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

// SetStatus activates, deactivates or blocks an account.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	user, err := h.users.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.AccountStatus(req.Status))
	if err != nil {
		writeDomainError(w, "failed to update user status", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserFromDomain(user))
}

// AdjustBalance sets a user's balance through a ledger adjustment entry.
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	res, err := h.admin.AdjustBalance(r.Context(), chi.URLParam(r, "id"), req.Balance, req.Reason)
	if err != nil {
		writeDomainError(w, "failed to adjust balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AdjustmentFromUseCase(res))
}

// Consistency compares the stored balance with the ledger.
func (h *AdminHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.CheckConsistency(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to check consistency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromUseCase(report))
}
