package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/adapter/http/middleware"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/logger"
	"github.com/iho/betledger/internal/usecase"
)

// DepositService defines the behavior needed by DepositHandler.
type DepositService interface {
	GeneratePix(ctx context.Context, in usecase.GeneratePixInput) (*usecase.GeneratePixOutput, error)
}

// EntryLookup resolves entries for the caller.
type EntryLookup interface {
	GetEntry(ctx context.Context, id, ownerID string) (*domain.LedgerEntry, error)
	GetByReference(ctx context.Context, ref, ownerID string) (*domain.LedgerEntry, error)
}

// DepositHandler handles PIX deposit requests.
type DepositHandler struct {
	deposits DepositService
	entries  EntryLookup
	logger   zerolog.Logger
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(deposits DepositService, entries EntryLookup, logger zerolog.Logger) *DepositHandler {
	return &DepositHandler{deposits: deposits, entries: entries, logger: logger}
}

// Generate creates a pending deposit and a PIX charge for it.
func (h *DepositHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req dto.GeneratePixRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	out, err := h.deposits.GeneratePix(r.Context(), req.ToUseCaseInput(userID, middleware.ClientIP(r), r.UserAgent()))
	if err != nil {
		log := logger.FromContext(r.Context(), h.logger)
		if errors.Is(err, domain.ErrUpstreamGateway) && out != nil && out.Entry != nil {
			log.Warn().Err(err).Str("entry_id", out.Entry.ID).Msg("pix charge failed, entry left pending")
		}
		writeDomainError(w, "failed to generate pix charge", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.GeneratePixFromUseCase(out))
}

// Status reports a deposit's state by external reference or entry id.
func (h *DepositHandler) Status(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing reference", "")
		return
	}

	owner := ownerScope(r)
	entry, err := h.entries.GetByReference(r.Context(), ref, owner)
	if errors.Is(err, domain.ErrNotFound) {
		entry, err = h.entries.GetEntry(r.Context(), ref, owner)
	}
	if err != nil {
		writeDomainError(w, "failed to get deposit status", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PixStatusFromDomain(entry))
}
