package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/logger"
	"github.com/iho/betledger/internal/usecase"
)

// WebhookService defines the behavior needed by WebhookHandler.
type WebhookService interface {
	HandlePixWebhook(ctx context.Context, in usecase.PixWebhookInput) (*usecase.WebhookResult, error)
}

// WebhookHandler receives payment gateway notifications.
type WebhookHandler struct {
	reconciler WebhookService
	logger     zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconciler WebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logger: logger}
}

// Pix settles the deposit a PIX notification refers to. Redeliveries
// answer 200 with already_processed set.
func (h *WebhookHandler) Pix(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	in, err := dto.ParsePixWebhook(body)
	if err != nil {
		log.Warn().Err(err).Msg("unparseable pix webhook")
		writeDomainError(w, "invalid webhook payload", err)
		return
	}

	res, err := h.reconciler.HandlePixWebhook(r.Context(), in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().
				Str("reference", in.ExternalReference).
				Str("transaction_id", in.TransactionID).
				Msg("pix webhook for unknown entry")
		}
		writeDomainError(w, "failed to process webhook", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookFromUseCase(res))
}
