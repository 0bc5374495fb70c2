package handler

import (
	"context"
	"net/http"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/adapter/http/middleware"
	"github.com/iho/betledger/internal/domain"
)

// TrackingService defines the behavior needed by TrackingHandler.
type TrackingService interface {
	SaveForIP(ctx context.Context, ip string, params domain.AttributionParams) (*domain.AttributionRecord, error)
	GetForIP(ctx context.Context, ip string) (*domain.AttributionRecord, error)
}

// TrackingHandler captures campaign parameters per client address so a later
// deposit without its own parameters can still be attributed.
type TrackingHandler struct {
	tracking TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(tracking TrackingService) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// Save stores the caller's campaign parameters.
func (h *TrackingHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.TrackingParams
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	params := req.ToDomain()
	if params.UserAgent == "" {
		params.UserAgent = r.UserAgent()
	}

	rec, err := h.tracking.SaveForIP(r.Context(), middleware.ClientIP(r), params)
	if err != nil {
		writeDomainError(w, "failed to save tracking parameters", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AttributionRecordFromDomain(rec))
}

// Get returns the parameters stored for the caller's address.
func (h *TrackingHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracking.GetForIP(r.Context(), middleware.ClientIP(r))
	if err != nil {
		writeDomainError(w, "failed to get tracking parameters", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AttributionRecordFromDomain(rec))
}
