package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// EntryService defines the behavior needed by EntryHandler.
type EntryService interface {
	GetEntry(ctx context.Context, id, ownerID string) (*domain.LedgerEntry, error)
	ListByUser(ctx context.Context, filter domain.EntryFilter) (*usecase.EntryPage, error)
}

// EntryHandler handles ledger entry queries.
type EntryHandler struct {
	entryUC EntryService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryUC EntryService) *EntryHandler {
	return &EntryHandler{entryUC: entryUC}
}

// List lists a user's entries. Players always see their own; operators may
// pass user_id.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := ownerScope(r)
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id", "")
		return
	}

	q := r.URL.Query()
	page, err := h.entryUC.ListByUser(r.Context(), domain.EntryFilter{
		UserID: userID,
		Type:   domain.EntryType(q.Get("type")),
		Status: domain.EntryStatus(q.Get("status")),
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryPageFromUseCase(page))
}

// Get retrieves an entry by ID.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry ID", "")
		return
	}

	entry, err := h.entryUC.GetEntry(r.Context(), id, ownerScope(r))
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}
