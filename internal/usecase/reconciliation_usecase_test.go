package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
	"github.com/iho/betledger/internal/usecase/mocks"
)

func paidWebhook(ref, txID string) usecase.PixWebhookInput {
	return usecase.PixWebhookInput{
		Status:            usecase.PixStatusPaid,
		TransactionID:     txID,
		ExternalReference: ref,
		DateApproval:      "2025-03-10T15:01:00Z",
		CreditParty:       map[string]any{"name": "Payer", "document": "12345678900"},
		Raw:               map[string]any{"status": "PAID"},
	}
}

func TestHandlePixWebhook_CreditsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_1_u1", 100)

	first, err := h.engine.HandlePixWebhook(ctx, paidWebhook(dep.ExternalReference, "gw-1"))
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)
	assert.Equal(t, domain.EntryStatusCompleted, first.Entry.Status)
	assert.Equal(t, domain.ReferenceMatchExternal, first.ReferenceMatch)

	second, err := h.engine.HandlePixWebhook(ctx, paidWebhook(dep.ExternalReference, "gw-1"))
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)

	assert.True(t, h.balance(t, "u1").Equal(amt(100)))

	stored := h.entry(t, dep.ID)
	assert.Equal(t, domain.EntryStatusCompleted, stored.Status)
	assert.Equal(t, "gw-1", stored.Metadata[domain.MetaPixTransactionID])
	assert.Equal(t, string(domain.PaymentMethodPix), stored.Metadata[domain.MetaPaymentMethod])
	assert.NotEmpty(t, stored.Metadata[domain.MetaCompletedAt])

	events, err := h.store.Outbox().GetByAggregate(ctx, domain.AggregateTypeEntry, dep.ID, 10, 0)
	require.NoError(t, err)
	var completed int
	for _, e := range events {
		if e.EventType == domain.EventTypeEntryCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestHandlePixWebhook_ConcurrentDeliveriesApplyOneDelta(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_2_u1", 250)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		fresh     int
		processed int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := h.engine.HandlePixWebhook(ctx, paidWebhook(dep.ExternalReference, "gw-2"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.AlreadyProcessed {
				processed++
			} else {
				fresh++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, workers-1, processed)
	assert.True(t, h.balance(t, "u1").Equal(amt(250)))
}

func TestHandlePixWebhook_RejectsNonPaidStatus(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_3_u1", 100)

	for _, status := range []string{"PENDING", "paid", " PAID", "Paid", ""} {
		in := paidWebhook(dep.ExternalReference, "gw-3")
		in.Status = status
		_, err := h.engine.HandlePixWebhook(context.Background(), in)

		assert.ErrorIs(t, err, domain.ErrInvalidPayload, status)
		assert.ErrorIs(t, err, domain.ErrValidation, status)
	}
	assert.Equal(t, domain.EntryStatusPending, h.entry(t, dep.ID).Status)
	assert.True(t, h.balance(t, "u1").IsZero())
}

func TestHandlePixWebhook_UnknownReference(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	h.pendingDeposit(t, "u1", "PIX_4_u1", 100)

	_, err := h.engine.HandlePixWebhook(context.Background(), paidWebhook("PIX_missing", "gw-4"))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, h.balance(t, "u1").IsZero())
}

func TestHandlePixWebhook_OnlySettlesPixDeposits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 1000)

	w, err := h.withdrawals.RequestWithdrawal(ctx, usecase.RequestWithdrawalInput{
		UserID:            "u1",
		Amount:            amt(100),
		PixKey:            "player@example.com",
		PixKeyType:        "email",
		ExternalReference: "WD-1",
	})
	require.NoError(t, err)

	_, err = h.engine.HandlePixWebhook(ctx, paidWebhook("WD-1", "gw-x"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// No pending deposit exists for the inexact fallback either.
	_, err = h.engine.HandlePixWebhook(ctx, paidWebhook("", "gw-y"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored := h.entry(t, w.ID)
	assert.Equal(t, domain.EntryStatusPending, stored.Status)
	assert.True(t, h.balance(t, "u1").Equal(amt(900)))

	_, err = h.engine.CancelWithdrawal(ctx, w.ID, "u1", "")
	require.NoError(t, err)
	assert.True(t, h.balance(t, "u1").Equal(amt(1000)))
}

func TestHandlePixWebhook_FallsBackToLatestPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	older := h.pendingDeposit(t, "u1", "PIX_5_u1", 10)
	h.clock.Advance(time.Minute)
	newest := h.pendingDeposit(t, "u1", "PIX_6_u1", 20)

	res, err := h.engine.HandlePixWebhook(ctx, paidWebhook("", "gw-5"))
	require.NoError(t, err)
	assert.Equal(t, newest.ID, res.Entry.ID)
	assert.Equal(t, domain.ReferenceMatchLatestPending, res.ReferenceMatch)
	assert.Equal(t, domain.ReferenceMatchLatestPending, h.entry(t, newest.ID).Metadata[domain.MetaReferenceMatch])
	assert.Equal(t, domain.EntryStatusPending, h.entry(t, older.ID).Status)

	// The adopted gateway id makes the redelivery resolve exactly.
	again, err := h.engine.HandlePixWebhook(ctx, paidWebhook("", "gw-5"))
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, domain.ReferenceMatchProvider, again.ReferenceMatch)
	assert.Equal(t, domain.EntryStatusPending, h.entry(t, older.ID).Status)
	assert.True(t, h.balance(t, "u1").Equal(amt(20)))
}

func TestHandlePixWebhook_RecordsAmountMismatch(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_7_u1", 100)

	in := paidWebhook(dep.ExternalReference, "gw-7")
	paid := amt(90)
	in.Amount = &paid
	_, err := h.engine.HandlePixWebhook(context.Background(), in)
	require.NoError(t, err)

	stored := h.entry(t, dep.ID)
	assert.Equal(t, true, stored.Metadata[domain.MetaAmountMismatch])
	assert.Equal(t, "90", stored.Metadata[domain.MetaPaidAmount])
	assert.True(t, h.balance(t, "u1").Equal(amt(100)))
}

func TestHandlePixWebhook_AttributionFailureDoesNotAffectSettlement(t *testing.T) {
	sink := &mocks.FuncAttributionSink{
		SendFn: func(context.Context, usecase.AttributionEvent) error {
			return errors.New("connection refused")
		},
	}
	h := newHarness(t, withSink(sink))
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_8_u1", 100)

	res, err := h.engine.HandlePixWebhook(context.Background(), paidWebhook(dep.ExternalReference, "gw-8"))
	require.NoError(t, err)
	require.NotNil(t, res.Attribution)
	assert.False(t, res.Attribution.Success)
	assert.Equal(t, 3, res.Attribution.Attempts)
	assert.ErrorIs(t, res.Attribution.Err, domain.ErrAttributionDelivery)
	assert.Len(t, sink.Calls(), 3)

	stored := h.entry(t, dep.ID)
	assert.Equal(t, domain.EntryStatusCompleted, stored.Status)
	assert.Equal(t, false, stored.Metadata[domain.MetaAttributionSuccess])
	assert.Equal(t, 3, stored.Metadata[domain.MetaAttributionAttempts])
	assert.NotEmpty(t, stored.Metadata[domain.MetaAttributionError])
	assert.True(t, h.balance(t, "u1").Equal(amt(100)))
}

func TestHandlePixWebhook_AttributionUsesAddressCapturedAtCreation(t *testing.T) {
	ctx := context.Background()
	sink := &mocks.FuncAttributionSink{}
	h := newHarness(t, withSink(sink))
	h.seedUser(t, "u1", 0)

	_, err := h.attribution.SaveForIP(ctx, "198.51.100.7", domain.AttributionParams{UTMSource: "facebook", UTMCampaign: "spring"})
	require.NoError(t, err)

	dep, err := h.entries.CreatePending(ctx, &domain.LedgerEntry{
		UserID:            "u1",
		Type:              domain.EntryTypeDeposit,
		Amount:            amt(50),
		PaymentMethod:     domain.PaymentMethodPix,
		ExternalReference: "PIX_9_u1",
		Metadata:          domain.Metadata{domain.MetaClientIP: "198.51.100.7"},
	})
	require.NoError(t, err)

	res, err := h.engine.HandlePixWebhook(ctx, paidWebhook(dep.ExternalReference, "gw-9"))
	require.NoError(t, err)
	require.NotNil(t, res.Attribution)
	assert.True(t, res.Attribution.Success)
	assert.Equal(t, domain.AttributionSourceIP, res.Attribution.Source)

	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.AttributionEventPurchase, calls[0].Type)
	assert.Equal(t, "facebook", calls[0].Params.UTMSource)
	assert.Equal(t, "198.51.100.7", calls[0].ClientIP)
	assert.Equal(t, true, h.entry(t, dep.ID).Metadata[domain.MetaAttributionSuccess])
}

func TestCompleteEntry_CardDepositNeedsCardMetadata(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)

	dep, err := h.entries.CreatePending(ctx, &domain.LedgerEntry{
		UserID:        "u1",
		Type:          domain.EntryTypeDeposit,
		Amount:        amt(80),
		PaymentMethod: domain.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	_, err = h.engine.CompleteEntry(ctx, dep.ID, nil)
	assert.ErrorIs(t, err, domain.ErrMissingCardMetadata)
	assert.Equal(t, domain.EntryStatusPending, h.entry(t, dep.ID).Status)

	done, err := h.engine.CompleteEntry(ctx, dep.ID, domain.Metadata{
		domain.MetaCardNumber: "**** **** **** 4242",
		domain.MetaBonus:      false,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, done.Status)
	assert.True(t, h.balance(t, "u1").Equal(amt(80)))
}

func TestSettle_TerminalEntriesNeverMoveAgain(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_10_u1", 100)

	_, err := h.engine.FailEntry(ctx, dep.ID, "expired")
	require.NoError(t, err)

	_, err = h.engine.CompleteEntry(ctx, dep.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.engine.FailEntry(ctx, dep.ID, "expired")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)

	res, err := h.engine.HandlePixWebhook(ctx, paidWebhook(dep.ExternalReference, "gw-10"))
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, domain.EntryStatusFailed, h.entry(t, dep.ID).Status)
	assert.True(t, h.balance(t, "u1").IsZero())
}

func TestCancelEntry_OwnerScoped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	h.seedUser(t, "u2", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_11_u1", 100)

	_, err := h.engine.CancelEntry(ctx, dep.ID, "u2", "not mine")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	cancelled, err := h.engine.CancelEntry(ctx, dep.ID, "u1", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.Metadata[domain.MetaReason])
}

func TestConfirmWithdrawal_DoesNotDebitTwice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 1000)

	w, err := h.withdrawals.RequestWithdrawal(ctx, usecase.RequestWithdrawalInput{
		UserID:     "u1",
		Amount:     amt(300),
		PixKey:     "player@example.com",
		PixKeyType: "email",
	})
	require.NoError(t, err)
	assert.True(t, h.balance(t, "u1").Equal(amt(700)))

	opCtx := domain.ContextWithPrincipal(ctx, &domain.Principal{ID: "op-1", Role: domain.RoleOperator})
	done, err := h.engine.ConfirmWithdrawal(opCtx, w.ID, "paid out")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusCompleted, done.Status)
	assert.True(t, h.balance(t, "u1").Equal(amt(700)))

	logs, err := h.store.Audit().GetByResourceID(ctx, domain.AggregateTypeEntry, w.ID)
	require.NoError(t, err)
	var confirmed bool
	for _, l := range logs {
		if l.Action == string(domain.AuditActionEntryConfirm) {
			confirmed = true
			assert.Equal(t, "op-1", l.UserID)
		}
	}
	assert.True(t, confirmed)
}

func TestConfirmWithdrawal_RejectsOtherTypes(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_12_u1", 100)

	_, err := h.engine.ConfirmWithdrawal(context.Background(), dep.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidEntryType)
	assert.Equal(t, domain.EntryStatusPending, h.entry(t, dep.ID).Status)
}

func TestCancelWithdrawal_ReleasesReservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 1000)

	w, err := h.withdrawals.RequestWithdrawal(ctx, usecase.RequestWithdrawalInput{
		UserID:     "u1",
		Amount:     amt(400),
		PixKey:     "12345678901",
		PixKeyType: "cpf",
	})
	require.NoError(t, err)
	assert.True(t, h.balance(t, "u1").Equal(amt(600)))

	_, err = h.engine.CancelEntry(ctx, w.ID, "u1", "")
	require.NoError(t, err)
	assert.True(t, h.balance(t, "u1").Equal(amt(1000)))

	_, err = h.engine.FailEntry(ctx, w.ID, "late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.True(t, h.balance(t, "u1").Equal(amt(1000)))
}

func TestWithdrawalSettlement_RejectsDeposits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 0)
	dep := h.pendingDeposit(t, "u1", "PIX_13_u1", 100)

	_, err := h.engine.CancelWithdrawal(ctx, dep.ID, "u1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidEntryType)

	_, err = h.engine.CancelWithdrawal(ctx, dep.ID, "u2", "")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = h.engine.FailWithdrawal(ctx, dep.ID, "rejected")
	assert.ErrorIs(t, err, domain.ErrInvalidEntryType)
	assert.Equal(t, domain.EntryStatusPending, h.entry(t, dep.ID).Status)

	res, err := h.engine.HandlePixWebhook(ctx, paidWebhook(dep.ExternalReference, "gw-13"))
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.True(t, h.balance(t, "u1").Equal(amt(100)))
}

func TestFailWithdrawal_ReleasesReservation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedUser(t, "u1", 500)

	w, err := h.withdrawals.RequestWithdrawal(ctx, usecase.RequestWithdrawalInput{
		UserID:     "u1",
		Amount:     amt(200),
		PixKey:     "12345678901",
		PixKeyType: "cpf",
	})
	require.NoError(t, err)

	failed, err := h.engine.FailWithdrawal(ctx, w.ID, "bank rejected")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusFailed, failed.Status)
	assert.Equal(t, "bank rejected", failed.Metadata[domain.MetaFailureReason])
	assert.True(t, h.balance(t, "u1").Equal(amt(500)))
}
