package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// WithdrawalService defines the player-facing withdrawal operations.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, in usecase.RequestWithdrawalInput) (*domain.LedgerEntry, error)
	History(ctx context.Context, userID string, status domain.EntryStatus, limit, offset int) (*usecase.EntryPage, error)
	Limits(ctx context.Context, userID string) (*usecase.LimitsView, error)
}

// SettlementService defines the settlement operations. The withdrawal
// variants refuse entries of any other type.
type SettlementService interface {
	ConfirmWithdrawal(ctx context.Context, entryID, note string) (*domain.LedgerEntry, error)
	CancelWithdrawal(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error)
	FailWithdrawal(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error)
	CancelEntry(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error)
	FailEntry(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error)
}

// WithdrawalHandler handles withdrawal requests and the settlement of
// pending entries.
type WithdrawalHandler struct {
	withdrawals WithdrawalService
	settlement  SettlementService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawals WithdrawalService, settlement SettlementService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, settlement: settlement}
}

// Request reserves funds for a payout to a PIX key.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.RequestWithdrawalRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	entry, err := h.withdrawals.RequestWithdrawal(r.Context(), req.ToUseCaseInput(userID))
	if err != nil {
		writeDomainError(w, "failed to request withdrawal", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// History lists the caller's withdrawals, newest first.
func (h *WithdrawalHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	status := domain.EntryStatus(r.URL.Query().Get("status"))
	page, err := h.withdrawals.History(r.Context(), userID, status, parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, "failed to list withdrawals", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryPageFromUseCase(page))
}

// Limits reports the caller's withdrawal limits and what is left today.
func (h *WithdrawalHandler) Limits(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	view, err := h.withdrawals.Limits(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "failed to get limits", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LimitsFromUseCase(view))
}

// Confirm marks a paid-out withdrawal COMPLETED.
func (h *WithdrawalHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, func(ctx context.Context, id, reason string) (*domain.LedgerEntry, error) {
		return h.settlement.ConfirmWithdrawal(ctx, id, reason)
	})
}

// Cancel cancels a pending withdrawal and releases its reservation. Players
// may only cancel their own.
func (h *WithdrawalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner := ownerScope(r)
	h.settle(w, r, func(ctx context.Context, id, reason string) (*domain.LedgerEntry, error) {
		return h.settlement.CancelWithdrawal(ctx, id, owner, reason)
	})
}

// Fail marks a pending withdrawal FAILED and releases its reservation.
func (h *WithdrawalHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, func(ctx context.Context, id, reason string) (*domain.LedgerEntry, error) {
		return h.settlement.FailWithdrawal(ctx, id, reason)
	})
}

// CancelEntry cancels any pending entry, e.g. an abandoned deposit charge.
// Operators only.
func (h *WithdrawalHandler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, func(ctx context.Context, id, reason string) (*domain.LedgerEntry, error) {
		return h.settlement.CancelEntry(ctx, id, "", reason)
	})
}

// FailEntry marks any pending entry FAILED. Operators only.
func (h *WithdrawalHandler) FailEntry(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, func(ctx context.Context, id, reason string) (*domain.LedgerEntry, error) {
		return h.settlement.FailEntry(ctx, id, reason)
	})
}

func (h *WithdrawalHandler) settle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, reason string) (*domain.LedgerEntry, error)) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry ID", "")
		return
	}

	var req dto.SettleRequest
	if err := decodeOptional(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	entry, err := fn(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, "failed to settle entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}
