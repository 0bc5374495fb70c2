package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// HistoryService exposes the audit trail and per-entry history.
type HistoryService interface {
	AuditTrail(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	EntryHistory(ctx context.Context, entryID string) (*usecase.EntryHistory, error)
}

// AuditHandler serves read-only compliance views for operators.
type AuditHandler struct {
	history HistoryService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(history HistoryService) *AuditHandler {
	return &AuditHandler{history: history}
}

// Trail lists audit logs. Query parameters: user_id, action,
// resource_type, resource_id, from, to (RFC 3339), limit, offset.
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		UserID:       q.Get("user_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Limit:        parseIntQuery(r, "limit", 100),
		Offset:       parseIntQuery(r, "offset", 0),
	}

	var err error
	if filter.StartDate, err = parseTimeQuery(r, "from"); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}
	if filter.EndDate, err = parseTimeQuery(r, "to"); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	logs, err := h.history.AuditTrail(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "failed to list audit logs", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": dto.AuditLogsFromDomain(logs)})
}

// EntryHistory returns an entry with its audit trail and emitted events.
func (h *AuditHandler) EntryHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.history.EntryHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to load entry history", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryHistoryFromUseCase(history))
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", domain.ErrValidation, key)
	}
	return &t, nil
}
