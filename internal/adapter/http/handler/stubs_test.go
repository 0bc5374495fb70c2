package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

type depositServiceStub struct {
	generateFn func(ctx context.Context, in usecase.GeneratePixInput) (*usecase.GeneratePixOutput, error)
}

func (s *depositServiceStub) GeneratePix(ctx context.Context, in usecase.GeneratePixInput) (*usecase.GeneratePixOutput, error) {
	return s.generateFn(ctx, in)
}

type entryServiceStub struct {
	getFn   func(ctx context.Context, id, ownerID string) (*domain.LedgerEntry, error)
	byRefFn func(ctx context.Context, ref, ownerID string) (*domain.LedgerEntry, error)
	listFn  func(ctx context.Context, filter domain.EntryFilter) (*usecase.EntryPage, error)
}

func (s *entryServiceStub) GetEntry(ctx context.Context, id, ownerID string) (*domain.LedgerEntry, error) {
	return s.getFn(ctx, id, ownerID)
}

func (s *entryServiceStub) GetByReference(ctx context.Context, ref, ownerID string) (*domain.LedgerEntry, error) {
	return s.byRefFn(ctx, ref, ownerID)
}

func (s *entryServiceStub) ListByUser(ctx context.Context, filter domain.EntryFilter) (*usecase.EntryPage, error) {
	return s.listFn(ctx, filter)
}

type webhookServiceStub struct {
	handleFn func(ctx context.Context, in usecase.PixWebhookInput) (*usecase.WebhookResult, error)
}

func (s *webhookServiceStub) HandlePixWebhook(ctx context.Context, in usecase.PixWebhookInput) (*usecase.WebhookResult, error) {
	return s.handleFn(ctx, in)
}

type withdrawalServiceStub struct {
	requestFn func(ctx context.Context, in usecase.RequestWithdrawalInput) (*domain.LedgerEntry, error)
	historyFn func(ctx context.Context, userID string, status domain.EntryStatus, limit, offset int) (*usecase.EntryPage, error)
	limitsFn  func(ctx context.Context, userID string) (*usecase.LimitsView, error)
}

func (s *withdrawalServiceStub) RequestWithdrawal(ctx context.Context, in usecase.RequestWithdrawalInput) (*domain.LedgerEntry, error) {
	return s.requestFn(ctx, in)
}

func (s *withdrawalServiceStub) History(ctx context.Context, userID string, status domain.EntryStatus, limit, offset int) (*usecase.EntryPage, error) {
	return s.historyFn(ctx, userID, status, limit, offset)
}

func (s *withdrawalServiceStub) Limits(ctx context.Context, userID string) (*usecase.LimitsView, error) {
	return s.limitsFn(ctx, userID)
}

type settlementServiceStub struct {
	confirmFn        func(ctx context.Context, entryID, note string) (*domain.LedgerEntry, error)
	cancelWithdrawFn func(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error)
	failWithdrawFn   func(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error)
	cancelFn         func(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error)
	failFn           func(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error)
}

func (s *settlementServiceStub) ConfirmWithdrawal(ctx context.Context, entryID, note string) (*domain.LedgerEntry, error) {
	return s.confirmFn(ctx, entryID, note)
}

func (s *settlementServiceStub) CancelWithdrawal(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error) {
	return s.cancelWithdrawFn(ctx, entryID, ownerID, reason)
}

func (s *settlementServiceStub) FailWithdrawal(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error) {
	return s.failWithdrawFn(ctx, entryID, reason)
}

func (s *settlementServiceStub) CancelEntry(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error) {
	return s.cancelFn(ctx, entryID, ownerID, reason)
}

func (s *settlementServiceStub) FailEntry(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error) {
	return s.failFn(ctx, entryID, reason)
}

type gameplayServiceStub struct {
	calls []string
	last  usecase.GameplayInput
	err   error
}

func (s *gameplayServiceStub) record(kind string, in usecase.GameplayInput, typ domain.EntryType) (*domain.LedgerEntry, error) {
	s.calls = append(s.calls, kind)
	s.last = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.LedgerEntry{ID: "g1", UserID: in.UserID, Type: typ, Amount: in.Amount, Status: domain.EntryStatusCompleted}, nil
}

func (s *gameplayServiceStub) PlaceBet(_ context.Context, in usecase.GameplayInput) (*domain.LedgerEntry, error) {
	return s.record("bet", in, domain.EntryTypeBet)
}

func (s *gameplayServiceStub) CreditWin(_ context.Context, in usecase.GameplayInput) (*domain.LedgerEntry, error) {
	return s.record("win", in, domain.EntryTypeWin)
}

func (s *gameplayServiceStub) CreditBonus(_ context.Context, in usecase.GameplayInput) (*domain.LedgerEntry, error) {
	return s.record("bonus", in, domain.EntryTypeBonus)
}

type trackingServiceStub struct {
	saveFn func(ctx context.Context, ip string, params domain.AttributionParams) (*domain.AttributionRecord, error)
	getFn  func(ctx context.Context, ip string) (*domain.AttributionRecord, error)
}

func (s *trackingServiceStub) SaveForIP(ctx context.Context, ip string, params domain.AttributionParams) (*domain.AttributionRecord, error) {
	return s.saveFn(ctx, ip, params)
}

func (s *trackingServiceStub) GetForIP(ctx context.Context, ip string) (*domain.AttributionRecord, error) {
	return s.getFn(ctx, ip)
}

type adminServiceStub struct {
	adjustFn      func(ctx context.Context, userID string, target decimal.Decimal, reason string) (*usecase.AdjustmentResult, error)
	consistencyFn func(ctx context.Context, userID string) (*usecase.ConsistencyReport, error)
}

func (s *adminServiceStub) AdjustBalance(ctx context.Context, userID string, target decimal.Decimal, reason string) (*usecase.AdjustmentResult, error) {
	return s.adjustFn(ctx, userID, target, reason)
}

func (s *adminServiceStub) CheckConsistency(ctx context.Context, userID string) (*usecase.ConsistencyReport, error) {
	return s.consistencyFn(ctx, userID)
}

type userServiceStub struct {
	createFn func(ctx context.Context, input usecase.CreateUserInput) (*domain.UserAccount, error)
	getFn    func(ctx context.Context, id string) (*domain.UserAccount, error)
	statusFn func(ctx context.Context, id string, status domain.AccountStatus) (*domain.UserAccount, error)
}

func (s *userServiceStub) CreateUser(ctx context.Context, input usecase.CreateUserInput) (*domain.UserAccount, error) {
	return s.createFn(ctx, input)
}

func (s *userServiceStub) GetUser(ctx context.Context, id string) (*domain.UserAccount, error) {
	return s.getFn(ctx, id)
}

func (s *userServiceStub) SetStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.UserAccount, error) {
	return s.statusFn(ctx, id, status)
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	return httptest.NewRequest(method, target, &buf)
}

func asUser(r *http.Request, id string, role domain.Role) *http.Request {
	return r.WithContext(domain.ContextWithPrincipal(r.Context(), &domain.Principal{ID: id, Role: role}))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}
