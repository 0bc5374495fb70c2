package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"

	maxIdempotencyKeyLen = 128
)

// IdempotencyMiddleware replays the first successful response for a
// repeated Idempotency-Key. Keys are scoped to the caller and the route.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, logger zerolog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl, logger: logger}
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(IdempotencyKeyHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(header) > maxIdempotencyKeyLen {
			writeJSONError(w, http.StatusBadRequest, "invalid idempotency key", "key too long", "")
			return
		}

		key := domain.ActorID(r.Context()) + ":" + r.Method + ":" + r.URL.Path + ":" + header

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			m.logger.Error().Err(err).Str("key", header).Msg("idempotency check failed")
			writeJSONError(w, http.StatusInternalServerError, "idempotency check failed", "", "")
			return
		}

		if exists {
			if cached == nil || usecase.IsIdempotencyPending(cached) {
				writeJSONError(w, http.StatusConflict, "request in progress", "a request with this idempotency key is still being processed", "")
				return
			}
			replay(w, cached)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// Only successful responses are replayed; anything else frees the key.
		if recorder.statusCode < 200 || recorder.statusCode > 299 {
			if err := m.store.Release(r.Context(), key); err != nil {
				m.logger.Warn().Err(err).Str("key", header).Msg("failed to release idempotency key")
			}
			return
		}

		payload, err := json.Marshal(storedResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()})
		if err != nil {
			_ = m.store.Release(r.Context(), key)
			return
		}
		if err := m.store.Update(r.Context(), key, payload, m.ttl); err != nil {
			m.logger.Warn().Err(err).Str("key", header).Msg("failed to store idempotent response")
		}
	})
}

func replay(w http.ResponseWriter, cached []byte) {
	var stored storedResponse
	if err := json.Unmarshal(cached, &stored); err != nil || stored.Status == 0 {
		// Values written before the envelope existed are raw bodies.
		stored = storedResponse{Status: http.StatusOK, Body: cached}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func writeJSONError(w http.ResponseWriter, status int, msg, details, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: msg, Message: details, Reason: reason})
}
