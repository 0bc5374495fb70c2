package handler

import (
	"context"
	"net/http"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// GameplayService defines the behavior needed by GameplayHandler.
type GameplayService interface {
	PlaceBet(ctx context.Context, in usecase.GameplayInput) (*domain.LedgerEntry, error)
	CreditWin(ctx context.Context, in usecase.GameplayInput) (*domain.LedgerEntry, error)
	CreditBonus(ctx context.Context, in usecase.GameplayInput) (*domain.LedgerEntry, error)
}

// GameplayHandler records stakes, payouts and bonuses.
type GameplayHandler struct {
	gameplay GameplayService
}

// NewGameplayHandler creates a new GameplayHandler.
func NewGameplayHandler(gameplay GameplayService) *GameplayHandler {
	return &GameplayHandler{gameplay: gameplay}
}

// Bet debits a stake.
func (h *GameplayHandler) Bet(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "failed to place bet", h.gameplay.PlaceBet)
}

// Win credits a payout.
func (h *GameplayHandler) Win(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "failed to credit win", h.gameplay.CreditWin)
}

// Bonus credits a promotional amount.
func (h *GameplayHandler) Bonus(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "failed to credit bonus", h.gameplay.CreditBonus)
}

func (h *GameplayHandler) record(w http.ResponseWriter, r *http.Request, failure string, fn func(context.Context, usecase.GameplayInput) (*domain.LedgerEntry, error)) {
	var req dto.GameplayRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	// Operators book on behalf of the user named in the body.
	userID := ownerScope(r)
	if userID == "" {
		userID = req.UserID
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id", "")
		return
	}

	entry, err := fn(r.Context(), req.ToUseCaseInput(userID))
	if err != nil {
		writeDomainError(w, failure, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}
