package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err and writes it. Policy violations carry their
// machine-readable reason.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := mapDomainError(err)
	resp := dto.ErrorResponse{Error: message, Message: err.Error()}
	if v, ok := domain.AsPolicyViolation(err); ok {
		resp.Reason = string(v.Reason)
		resp.Message = v.Message
	}
	if status == http.StatusInternalServerError {
		resp.Message = "internal error"
	}
	writeJSON(w, status, resp)
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateReference):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusOK
	case errors.Is(err, domain.ErrUpstreamGateway):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return dto.Validate(dst)
}

// decodeOptional is decodeAndValidate for bodies that may be empty.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil {
		return dto.Validate(dst)
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return dto.Validate(dst)
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// callerID returns the authenticated caller's id.
func callerID(r *http.Request) (string, bool) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok || p.ID == "" {
		return "", false
	}
	return p.ID, true
}

// ownerScope returns the owner filter for the caller: players see their own
// entries, operators and admins see everything.
func ownerScope(r *http.Request) string {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		return ""
	}
	if p.Role.CanSettle() {
		return ""
	}
	return p.ID
}
