package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/adapter/http/dto"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

func TestAdminHandler_AdjustBalance(t *testing.T) {
	var gotUser, gotReason string
	var gotTarget decimal.Decimal
	h := NewAdminHandler(&adminServiceStub{
		adjustFn: func(_ context.Context, userID string, target decimal.Decimal, reason string) (*usecase.AdjustmentResult, error) {
			gotUser, gotTarget, gotReason = userID, target, reason
			return &usecase.AdjustmentResult{
				Entry:           &domain.LedgerEntry{ID: "adj1", Type: domain.EntryTypeAdjustmentCredit},
				PreviousBalance: decimal.NewFromInt(100),
				Balance:         target,
			}, nil
		},
	}, nil)

	rr := httptest.NewRecorder()
	req := withURLParam(jsonRequest(t, http.MethodPut, "/", `{"balance":"250.00","reason":"goodwill"}`), "id", "u1")
	h.AdjustBalance(rr, asUser(req, "admin", domain.RoleAdmin))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "goodwill", gotReason)
	assert.True(t, gotTarget.Equal(decimal.NewFromInt(250)))
	resp := decodeBody[dto.AdjustmentResponse](t, rr)
	assert.Equal(t, "ADJUSTMENT_CREDIT", resp.Entry.Type)

	rr = httptest.NewRecorder()
	req = withURLParam(jsonRequest(t, http.MethodPut, "/", `{"balance":10}`), "id", "u1")
	h.AdjustBalance(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[dto.ErrorResponse](t, rr).Message, "reason is required")
}

func TestAdminHandler_Consistency(t *testing.T) {
	h := NewAdminHandler(&adminServiceStub{
		consistencyFn: func(_ context.Context, userID string) (*usecase.ConsistencyReport, error) {
			if userID == "ghost" {
				return nil, domain.ErrUserNotFound
			}
			return &usecase.ConsistencyReport{
				UserID:        userID,
				StoredBalance: decimal.NewFromInt(10),
				LedgerBalance: decimal.NewFromInt(12),
				Difference:    decimal.NewFromInt(-2),
			}, nil
		},
	}, nil)

	rr := httptest.NewRecorder()
	h.Consistency(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "u1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mismatch", decodeBody[dto.ConsistencyResponse](t, rr).Status)

	rr = httptest.NewRecorder()
	h.Consistency(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminHandler_Users(t *testing.T) {
	users := map[string]*domain.UserAccount{}
	h := NewAdminHandler(nil, &userServiceStub{
		createFn: func(_ context.Context, in usecase.CreateUserInput) (*domain.UserAccount, error) {
			u := &domain.UserAccount{ID: "u1", Name: in.Name, Email: in.Email, Role: in.Role, Status: domain.AccountStatusActive}
			users[u.ID] = u
			return u, nil
		},
		getFn: func(_ context.Context, id string) (*domain.UserAccount, error) {
			if u, ok := users[id]; ok {
				return u, nil
			}
			return nil, domain.ErrUserNotFound
		},
		statusFn: func(_ context.Context, id string, status domain.AccountStatus) (*domain.UserAccount, error) {
			u := users[id]
			u.Status = status
			return u, nil
		},
	})

	rr := httptest.NewRecorder()
	h.CreateUser(rr, jsonRequest(t, http.MethodPost, "/", `{"name":"Ana","email":"ana@example.com","role":"operator"}`))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "operator", decodeBody[dto.UserResponse](t, rr).Role)

	rr = httptest.NewRecorder()
	h.CreateUser(rr, jsonRequest(t, http.MethodPost, "/", `{"name":"Bad","email":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.GetUser(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "u1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.SetStatus(rr, withURLParam(jsonRequest(t, http.MethodPut, "/", `{"status":"BLOCKED"}`), "id", "u1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "BLOCKED", decodeBody[dto.UserResponse](t, rr).Status)

	rr = httptest.NewRecorder()
	h.SetStatus(rr, withURLParam(jsonRequest(t, http.MethodPut, "/", `{"status":"FROZEN"}`), "id", "u1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
