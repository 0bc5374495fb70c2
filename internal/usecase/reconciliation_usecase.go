package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// ReconciliationConfig wires the reconciliation engine.
type ReconciliationConfig struct {
	TxManager   TransactionManager
	Entries     EntryRepository
	Balances    *BalanceAccessor
	Outbox      OutboxRepository
	Audit       AuditRepository
	Attribution *AttributionUseCase
	Retrier     Retrier
	IDGen       IDGenerator
	Clock       Clock
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// ReconciliationUseCase moves entries out of PENDING. It is the only writer
// of entry status after creation.
type ReconciliationUseCase struct {
	txManager   TransactionManager
	entries     EntryRepository
	balances    *BalanceAccessor
	outbox      OutboxRepository
	audit       AuditRepository
	attribution *AttributionUseCase
	retrier     Retrier
	idGen       IDGenerator
	clock       Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewReconciliationUseCase creates the reconciliation engine.
func NewReconciliationUseCase(cfg ReconciliationConfig) *ReconciliationUseCase {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &ReconciliationUseCase{
		txManager:   cfg.TxManager,
		entries:     cfg.Entries,
		balances:    cfg.Balances,
		outbox:      cfg.Outbox,
		audit:       cfg.Audit,
		attribution: cfg.Attribution,
		retrier:     cfg.Retrier,
		idGen:       cfg.IDGen,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// PixWebhookInput is a gateway payment notification.
type PixWebhookInput struct {
	Status            string
	TransactionID     string
	ExternalReference string
	DateApproval      string
	CreditParty       map[string]any
	Amount            *decimal.Decimal
	Raw               map[string]any
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	Entry            *domain.LedgerEntry
	AlreadyProcessed bool
	ReferenceMatch   string
	Attribution      *AttributionOutcome
}

// HandlePixWebhook settles the deposit a PAID notification refers to.
// Redeliveries of the same notification are reported as already processed and
// never apply a second credit.
func (uc *ReconciliationUseCase) HandlePixWebhook(ctx context.Context, in PixWebhookInput) (*WebhookResult, error) {
	if in.Status != PixStatusPaid {
		uc.countWebhook("invalid")
		return nil, fmt.Errorf("%w: status %q is not %s", domain.ErrInvalidPayload, in.Status, PixStatusPaid)
	}

	target, match, err := uc.resolveWebhookTarget(ctx, in)
	if err != nil {
		uc.countWebhook("not_found")
		return nil, err
	}

	patch := uc.webhookMetadata(in, match, target)
	entry, err := uc.settle(ctx, settleRequest{
		entryID:     target.ID,
		to:          domain.EntryStatusCompleted,
		requireType: domain.EntryTypeDeposit,
		patch:       patch,
		// A fallback match adopts the gateway id so a redelivery resolves exactly.
		providerID: fallbackProviderID(match, in.TransactionID),
	})

	switch {
	case errors.Is(err, domain.ErrAlreadyProcessed), errors.Is(err, domain.ErrInvalidTransition):
		if errors.Is(err, domain.ErrInvalidTransition) {
			uc.logger.Warn().
				Str("entry_id", target.ID).
				Str("status", string(entry.Status)).
				Msg("paid notification for an entry that ended otherwise, manual review needed")
		}
		uc.countWebhook("already_processed")
		return &WebhookResult{Entry: entry, AlreadyProcessed: true, ReferenceMatch: match}, nil
	case err != nil:
		uc.countWebhook("error")
		return nil, err
	}

	uc.countWebhook("completed")
	uc.logger.Info().
		Str("entry_id", entry.ID).
		Str("user_id", entry.UserID).
		Str("amount", entry.Amount.String()).
		Str("reference_match", match).
		Msg("deposit settled")

	result := &WebhookResult{Entry: entry, ReferenceMatch: match}
	if uc.attribution != nil {
		result.Attribution = uc.attribution.NotifyCompleted(ctx, entry)
		if result.Attribution != nil && !result.Attribution.Skipped {
			entry.Metadata = entry.Metadata.Merge(result.Attribution.Metadata())
		}
	}

	return result, nil
}

// resolveWebhookTarget finds the PIX deposit a notification refers to: by
// our external reference, then by the gateway transaction id, then the newest
// pending PIX deposit. Only the last is inexact and it is flagged as such.
// Entries of any other type or method are never matched.
func (uc *ReconciliationUseCase) resolveWebhookTarget(ctx context.Context, in PixWebhookInput) (*domain.LedgerEntry, string, error) {
	if in.ExternalReference != "" {
		entry, err := uc.entries.GetByReference(ctx, in.ExternalReference)
		if err != nil {
			return nil, "", err
		}
		if !isPixDeposit(entry) {
			uc.logger.Warn().
				Str("entry_id", entry.ID).
				Str("type", string(entry.Type)).
				Msg("paid notification references an entry that is not a pix deposit")
			return nil, "", domain.ErrEntryNotFound
		}
		return entry, domain.ReferenceMatchExternal, nil
	}

	if in.TransactionID != "" {
		entry, err := uc.entries.GetByProviderTransactionID(ctx, in.TransactionID)
		if err == nil && isPixDeposit(entry) {
			return entry, domain.ReferenceMatchProvider, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	entry, err := uc.entries.GetLatestPending(ctx, nil, domain.EntryTypeDeposit, domain.PaymentMethodPix)
	if err != nil {
		return nil, "", err
	}
	return entry, domain.ReferenceMatchLatestPending, nil
}

func (uc *ReconciliationUseCase) webhookMetadata(in PixWebhookInput, match string, target *domain.LedgerEntry) domain.Metadata {
	txID := in.TransactionID
	if txID == "" {
		txID = "unknown"
	}
	approval := in.DateApproval
	if approval == "" {
		approval = uc.clock.Now().Format(time.RFC3339)
	}
	payer := in.CreditParty
	if payer == nil {
		payer = map[string]any{}
	}

	patch := domain.Metadata{
		domain.MetaPixTransactionID: txID,
		domain.MetaDateApproval:     approval,
		domain.MetaPayerInfo:        payer,
		domain.MetaWebhookData:      in.Raw,
		domain.MetaPaymentMethod:    string(domain.PaymentMethodPix),
		domain.MetaReferenceMatch:   match,
	}
	if in.Amount != nil && !in.Amount.Equal(target.Amount) {
		patch[domain.MetaAmountMismatch] = true
		patch[domain.MetaPaidAmount] = in.Amount.String()
	}
	return patch
}

func isPixDeposit(entry *domain.LedgerEntry) bool {
	return entry.Type == domain.EntryTypeDeposit && entry.PaymentMethod == domain.PaymentMethodPix
}

func fallbackProviderID(match, txID string) string {
	if match == domain.ReferenceMatchLatestPending {
		return txID
	}
	return ""
}

// CompleteEntry settles a pending entry as COMPLETED and applies its delta.
// A debit the balance cannot cover leaves the entry FAILED and returns
// domain.ErrInsufficientFunds together with the failed entry.
func (uc *ReconciliationUseCase) CompleteEntry(ctx context.Context, entryID string, patch domain.Metadata) (*domain.LedgerEntry, error) {
	entry, err := uc.settle(ctx, settleRequest{entryID: entryID, to: domain.EntryStatusCompleted, patch: patch})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		return entry, err
	}

	failed, ferr := uc.settle(ctx, settleRequest{
		entryID: entryID,
		to:      domain.EntryStatusFailed,
		patch:   domain.Metadata{domain.MetaFailureReason: "insufficient_funds"},
	})
	if ferr != nil && !errors.Is(ferr, domain.ErrAlreadyProcessed) {
		return nil, ferr
	}
	return failed, err
}

// ConfirmWithdrawal records that a reserved withdrawal was paid out.
// The balance was debited at request time and is not touched again.
func (uc *ReconciliationUseCase) ConfirmWithdrawal(ctx context.Context, entryID string, note string) (*domain.LedgerEntry, error) {
	return uc.settle(ctx, settleRequest{
		entryID:     entryID,
		to:          domain.EntryStatusCompleted,
		requireType: domain.EntryTypeWithdrawal,
		patch:       actorPatch(ctx, note),
		auditAction: domain.AuditActionEntryConfirm,
	})
}

// CancelEntry cancels a pending entry. ownerID, when set, restricts the
// operation to that user's entries. Withdrawal reservations are released.
func (uc *ReconciliationUseCase) CancelEntry(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error) {
	return uc.settle(ctx, settleRequest{
		entryID:     entryID,
		ownerID:     ownerID,
		to:          domain.EntryStatusCancelled,
		patch:       actorPatch(ctx, reason),
		auditAction: domain.AuditActionEntryCancel,
	})
}

// CancelWithdrawal cancels a pending withdrawal and releases its reservation.
// ownerID, when set, restricts the operation to that user's withdrawals.
func (uc *ReconciliationUseCase) CancelWithdrawal(ctx context.Context, entryID, ownerID, reason string) (*domain.LedgerEntry, error) {
	return uc.settle(ctx, settleRequest{
		entryID:     entryID,
		ownerID:     ownerID,
		to:          domain.EntryStatusCancelled,
		requireType: domain.EntryTypeWithdrawal,
		patch:       actorPatch(ctx, reason),
		auditAction: domain.AuditActionEntryCancel,
	})
}

// FailWithdrawal marks a pending withdrawal FAILED, e.g. when the payout was
// rejected, and releases its reservation.
func (uc *ReconciliationUseCase) FailWithdrawal(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error) {
	return uc.settle(ctx, settleRequest{
		entryID:     entryID,
		to:          domain.EntryStatusFailed,
		requireType: domain.EntryTypeWithdrawal,
		patch:       failurePatch(ctx, reason),
		auditAction: domain.AuditActionEntryFail,
	})
}

// FailEntry marks a pending entry FAILED, e.g. when the provider reports
// an expired charge or a rejected payout. Withdrawal reservations are released.
func (uc *ReconciliationUseCase) FailEntry(ctx context.Context, entryID, reason string) (*domain.LedgerEntry, error) {
	return uc.settle(ctx, settleRequest{
		entryID:     entryID,
		to:          domain.EntryStatusFailed,
		patch:       failurePatch(ctx, reason),
		auditAction: domain.AuditActionEntryFail,
	})
}

func failurePatch(ctx context.Context, reason string) domain.Metadata {
	patch := actorPatch(ctx, reason)
	if reason != "" {
		patch[domain.MetaFailureReason] = reason
	}
	return patch
}

func actorPatch(ctx context.Context, reason string) domain.Metadata {
	patch := domain.Metadata{domain.MetaActor: domain.ActorID(ctx)}
	if reason != "" {
		patch[domain.MetaReason] = reason
	}
	return patch
}

type settleRequest struct {
	entryID     string
	ownerID     string
	to          domain.EntryStatus
	requireType domain.EntryType
	patch       domain.Metadata
	providerID  string
	auditAction domain.AuditAction
}

func (uc *ReconciliationUseCase) settle(ctx context.Context, req settleRequest) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := withRetry(ctx, uc.retrier, func() error {
		var err error
		entry, err = uc.settleOnce(ctx, req)
		return err
	})
	return entry, err
}

// settleOnce performs one PENDING -> req.to transition in a single transaction:
// lock, compare-and-set, balance effect, outbox event, audit.
func (uc *ReconciliationUseCase) settleOnce(ctx context.Context, req settleRequest) (*domain.LedgerEntry, error) {
	start := time.Now()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	entry, err := uc.entries.GetByIDForUpdate(txCtx, tx, req.entryID)
	if err != nil {
		return nil, err
	}
	if req.ownerID != "" && entry.UserID != req.ownerID {
		return nil, domain.ErrEntryNotFound
	}
	if req.requireType != "" && entry.Type != req.requireType {
		return entry, fmt.Errorf("%w: entry is %s, expected %s", domain.ErrInvalidEntryType, entry.Type, req.requireType)
	}

	if entry.Status == req.to {
		return entry, domain.ErrAlreadyProcessed
	}
	if !entry.Status.CanTransitionTo(req.to) {
		return entry, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, entry.Status, req.to)
	}

	before := snapshot(entry)
	now := uc.clock.Now()
	patch := req.patch.Merge(nil)
	if req.to == domain.EntryStatusCompleted {
		patch[domain.MetaCompletedAt] = now.Format(time.RFC3339Nano)
		if err := entry.ValidateCompletion(entry.Metadata.Merge(patch)); err != nil {
			return entry, err
		}
	}

	swapped, err := uc.entries.CompareAndSetStatus(txCtx, tx, entry.ID, domain.EntryStatusPending, req.to, patch, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return entry, domain.ErrAlreadyProcessed
	}

	switch req.to {
	case domain.EntryStatusCompleted:
		if err := uc.balances.ApplyCompletionDelta(txCtx, tx, entry.UserID, entry.Type, entry.Amount, now); err != nil {
			return nil, err
		}
	case domain.EntryStatusFailed, domain.EntryStatusCancelled:
		if entry.HoldsReservation() {
			if err := uc.balances.Release(txCtx, tx, entry.UserID, entry.Amount, now); err != nil {
				return nil, err
			}
		}
	}

	if req.providerID != "" && entry.ProviderTransactionID == "" {
		if err := uc.entries.SetProviderTransactionID(txCtx, tx, entry.ID, req.providerID, nil, now); err != nil {
			return nil, err
		}
		entry.ProviderTransactionID = req.providerID
	}

	entry.Status = req.to
	entry.Metadata = entry.Metadata.Merge(patch)
	entry.UpdatedAt = now

	if err := emitEntryEvent(txCtx, tx, uc.outbox, uc.idGen, entry, domain.EventTypeForStatus(req.to), now); err != nil {
		return nil, err
	}

	if req.auditAction != "" {
		if err := writeAudit(txCtx, tx, uc.audit, uc.idGen, req.auditAction, domain.AggregateTypeEntry, entry.ID, before, entry, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}
	countAudit(uc.metrics, req.auditAction)

	if uc.metrics != nil {
		uc.metrics.EntriesSettled.WithLabelValues(string(entry.Type), string(req.to)).Inc()
		uc.metrics.SettleDuration.Observe(time.Since(start).Seconds())
	}

	return entry, nil
}

func (uc *ReconciliationUseCase) countWebhook(outcome string) {
	if uc.metrics != nil {
		uc.metrics.WebhooksReceived.WithLabelValues(outcome).Inc()
	}
}
