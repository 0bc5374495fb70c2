package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/adapter/repository/memory"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
	"github.com/iho/betledger/internal/usecase"
	"github.com/iho/betledger/internal/usecase/mocks"
)

// Noon in São Paulo, far from a day boundary.
var testNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

type harness struct {
	store       *memory.Store
	attrStore   *memory.AttributionStore
	clock       *mocks.MockClock
	idGen       *mocks.MockIDGenerator
	metrics     *metrics.Metrics
	balances    *usecase.BalanceAccessor
	entries     *usecase.EntryUseCase
	attribution *usecase.AttributionUseCase
	engine      *usecase.ReconciliationUseCase
	withdrawals *usecase.WithdrawalUseCase
	gameplay    *usecase.GameplayUseCase
	admin       *usecase.AdminUseCase
	users       *usecase.UserUseCase
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	sink   usecase.AttributionSink
	limits usecase.WithdrawalLimits
}

func withSink(s usecase.AttributionSink) harnessOption {
	return func(c *harnessConfig) { c.sink = s }
}

func withLimits(l usecase.WithdrawalLimits) harnessOption {
	return func(c *harnessConfig) { c.limits = l }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	cfg := harnessConfig{limits: usecase.DefaultWithdrawalLimits()}
	cfg.limits.Location = sp
	for _, o := range opts {
		o(&cfg)
	}

	h := &harness{
		store:     memory.NewStore(),
		attrStore: memory.NewAttributionStore(),
		clock:     mocks.NewMockClock(testNow),
		idGen:     mocks.NewMockIDGenerator(),
		metrics:   metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	logger := zerolog.Nop()

	tm := h.store.TxManager()
	users := h.store.Users()
	entries := h.store.Entries()

	h.balances = usecase.NewBalanceAccessor(users)
	h.entries = usecase.NewEntryUseCase(tm, entries, h.store.Outbox(), h.idGen, h.clock, h.metrics)
	h.attribution = usecase.NewAttributionUseCase(cfg.sink, h.attrStore, entries, users, h.clock, usecase.AttributionConfig{
		MaxAttempts:     3,
		Backoff:         0,
		AttemptTimeout:  time.Second,
		DefaultCampaign: "default",
		DefaultPageURL:  "https://example.com",
	}, h.metrics, logger)
	h.engine = usecase.NewReconciliationUseCase(usecase.ReconciliationConfig{
		TxManager:   tm,
		Entries:     entries,
		Balances:    h.balances,
		Outbox:      h.store.Outbox(),
		Audit:       h.store.Audit(),
		Attribution: h.attribution,
		IDGen:       h.idGen,
		Clock:       h.clock,
		Metrics:     h.metrics,
		Logger:      logger,
	})
	h.withdrawals = usecase.NewWithdrawalUseCase(usecase.WithdrawalConfig{
		TxManager: tm,
		Users:     users,
		Entries:   entries,
		Balances:  h.balances,
		Policy:    usecase.NewWithdrawalPolicy(cfg.limits),
		Outbox:    h.store.Outbox(),
		Audit:     h.store.Audit(),
		IDGen:     h.idGen,
		Clock:     h.clock,
		Metrics:   h.metrics,
		Logger:    logger,
	})
	h.gameplay = usecase.NewGameplayUseCase(h.entries, h.engine, users, logger)
	h.admin = usecase.NewAdminUseCase(usecase.AdminConfig{
		TxManager: tm,
		Users:     users,
		Entries:   entries,
		Balances:  h.balances,
		Outbox:    h.store.Outbox(),
		Audit:     h.store.Audit(),
		IDGen:     h.idGen,
		Clock:     h.clock,
		Metrics:   h.metrics,
		Logger:    logger,
	})
	h.users = usecase.NewUserUseCase(users, h.idGen, h.clock)
	return h
}

// seedUser creates an active account holding balance.
func (h *harness) seedUser(t *testing.T, id string, balance int64) {
	t.Helper()
	require.NoError(t, h.store.Users().Create(context.Background(), &domain.UserAccount{
		ID:        id,
		Name:      "Player " + id,
		Email:     id + "@example.com",
		Role:      domain.RolePlayer,
		Status:    domain.AccountStatusActive,
		Balance:   decimal.NewFromInt(balance),
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}))
}

func (h *harness) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	u, err := h.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

func (h *harness) entry(t *testing.T, id string) *domain.LedgerEntry {
	t.Helper()
	e, err := h.store.Entries().GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

// pendingDeposit creates a PENDING PIX deposit for userID.
func (h *harness) pendingDeposit(t *testing.T, userID, ref string, amount int64) *domain.LedgerEntry {
	t.Helper()
	e, err := h.entries.CreatePending(context.Background(), &domain.LedgerEntry{
		UserID:            userID,
		Type:              domain.EntryTypeDeposit,
		Amount:            decimal.NewFromInt(amount),
		PaymentMethod:     domain.PaymentMethodPix,
		ExternalReference: ref,
	})
	require.NoError(t, err)
	return e
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
