package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// AdminUseCase covers operator balance corrections and ledger consistency checks.
type AdminUseCase struct {
	txManager TransactionManager
	users     UserRepository
	entries   EntryRepository
	balances  *BalanceAccessor
	outbox    OutboxRepository
	audit     AuditRepository
	retrier   Retrier
	idGen     IDGenerator
	clock     Clock
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// AdminConfig wires an AdminUseCase.
type AdminConfig struct {
	TxManager TransactionManager
	Users     UserRepository
	Entries   EntryRepository
	Balances  *BalanceAccessor
	Outbox    OutboxRepository
	Audit     AuditRepository
	Retrier   Retrier
	IDGen     IDGenerator
	Clock     Clock
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// NewAdminUseCase creates an AdminUseCase.
func NewAdminUseCase(cfg AdminConfig) *AdminUseCase {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	return &AdminUseCase{
		txManager: cfg.TxManager,
		users:     cfg.Users,
		entries:   cfg.Entries,
		balances:  cfg.Balances,
		outbox:    cfg.Outbox,
		audit:     cfg.Audit,
		retrier:   cfg.Retrier,
		idGen:     cfg.IDGen,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// AdjustmentResult describes a balance correction.
// Entry is nil when the balance already matched the target.
type AdjustmentResult struct {
	Entry           *domain.LedgerEntry
	PreviousBalance decimal.Decimal
	Balance         decimal.Decimal
}

// AdjustBalance brings a user's balance to target by writing a COMPLETED
// ADJUSTMENT_CREDIT or ADJUSTMENT_DEBIT entry for the difference.
func (uc *AdminUseCase) AdjustBalance(ctx context.Context, userID string, target decimal.Decimal, reason string) (*AdjustmentResult, error) {
	if target.IsNegative() {
		return nil, fmt.Errorf("%w: balance cannot be negative", domain.ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}

	var result *AdjustmentResult
	err := withRetry(ctx, uc.retrier, func() error {
		var err error
		result, err = uc.adjustOnce(ctx, userID, target, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Entry != nil {
		uc.logger.Info().
			Str("user_id", userID).
			Str("entry_id", result.Entry.ID).
			Str("previous_balance", result.PreviousBalance.String()).
			Str("balance", result.Balance.String()).
			Str("actor", domain.ActorID(ctx)).
			Msg("balance adjusted")
	}
	return result, nil
}

func (uc *AdminUseCase) adjustOnce(ctx context.Context, userID string, target decimal.Decimal, reason string) (*AdjustmentResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	user, err := uc.users.GetByIDForUpdate(txCtx, tx, userID)
	if err != nil {
		return nil, err
	}

	previous := user.Balance
	delta := target.Sub(previous)
	if delta.IsZero() {
		return &AdjustmentResult{PreviousBalance: previous, Balance: previous}, nil
	}

	entryType := domain.EntryTypeAdjustmentCredit
	if delta.IsNegative() {
		entryType = domain.EntryTypeAdjustmentDebit
	}

	now := uc.clock.Now()
	entry := &domain.LedgerEntry{
		ID:            uc.idGen.Generate(),
		UserID:        user.ID,
		Type:          entryType,
		Amount:        delta.Abs(),
		Status:        domain.EntryStatusPending,
		PaymentMethod: domain.PaymentMethodSystem,
		Description:   "Balance adjustment",
		Metadata: domain.Metadata{
			domain.MetaActor:           domain.ActorID(ctx),
			domain.MetaReason:          reason,
			domain.MetaPreviousBalance: previous.String(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := uc.entries.Create(txCtx, tx, entry); err != nil {
		return nil, err
	}

	patch := domain.Metadata{domain.MetaCompletedAt: now.Format(time.RFC3339Nano)}
	if _, err := uc.entries.CompareAndSetStatus(txCtx, tx, entry.ID, domain.EntryStatusPending, domain.EntryStatusCompleted, patch, now); err != nil {
		return nil, err
	}
	if err := uc.balances.ApplyCompletionDelta(txCtx, tx, user.ID, entryType, entry.Amount, now); err != nil {
		return nil, err
	}
	entry.Status = domain.EntryStatusCompleted
	entry.Metadata = entry.Metadata.Merge(patch)

	if err := emitEntryEvent(txCtx, tx, uc.outbox, uc.idGen, entry, domain.EventTypeEntryCompleted, now); err != nil {
		return nil, err
	}
	if uc.outbox != nil {
		if err := uc.outbox.Create(txCtx, tx, &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   user.ID,
			AggregateType: domain.AggregateTypeUser,
			EventType:     domain.EventTypeBalanceAdjusted,
			Payload: map[string]any{
				"user_id":          user.ID,
				"entry_id":         entry.ID,
				"previous_balance": previous.String(),
				"balance":          target.String(),
				"actor":            domain.ActorID(ctx),
				"reason":           reason,
			},
			CreatedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	after := *user
	after.Balance = target
	if err := writeAudit(txCtx, tx, uc.audit, uc.idGen, domain.AuditActionBalanceAdjust,
		domain.AggregateTypeUser, user.ID, user, &after, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}
	countAudit(uc.metrics, domain.AuditActionBalanceAdjust)

	return &AdjustmentResult{Entry: entry, PreviousBalance: previous, Balance: target}, nil
}

// ConsistencyReport compares the stored balance with the one implied by the ledger.
type ConsistencyReport struct {
	UserID        string
	StoredBalance decimal.Decimal
	LedgerBalance decimal.Decimal
	Difference    decimal.Decimal
	Consistent    bool
}

// CheckConsistency recomputes a user's balance from completed entries and
// pending withdrawal reservations.
func (uc *AdminUseCase) CheckConsistency(ctx context.Context, userID string) (*ConsistencyReport, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	derived, err := uc.entries.SumBalanceEffects(ctx, userID)
	if err != nil {
		return nil, err
	}

	diff := user.Balance.Sub(derived)
	report := &ConsistencyReport{
		UserID:        user.ID,
		StoredBalance: user.Balance,
		LedgerBalance: derived,
		Difference:    diff,
		Consistent:    diff.IsZero(),
	}
	if !report.Consistent {
		uc.logger.Warn().
			Str("user_id", user.ID).
			Str("stored", user.Balance.String()).
			Str("ledger", derived.String()).
			Msg("balance drift detected")
	}
	return report, nil
}

// AuditTrail lists audit logs matching filter.
func (uc *AdminUseCase) AuditTrail(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	if filter.StartDate != nil && filter.EndDate != nil && !filter.EndDate.After(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end must be after start", domain.ErrValidation)
	}
	if uc.audit == nil {
		return nil, nil
	}
	return uc.audit.List(ctx, filter)
}

// EntryHistory is everything recorded about one ledger entry.
type EntryHistory struct {
	Entry  *domain.LedgerEntry
	Audit  []*domain.AuditLog
	Events []*domain.OutboxEvent
}

const maxEntryEvents = 50

// EntryHistory returns an entry with its audit trail and emitted events.
func (uc *AdminUseCase) EntryHistory(ctx context.Context, entryID string) (*EntryHistory, error) {
	entry, err := uc.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	h := &EntryHistory{Entry: entry}
	if uc.audit != nil {
		if h.Audit, err = uc.audit.GetByResourceID(ctx, domain.AggregateTypeEntry, entryID); err != nil {
			return nil, fmt.Errorf("load audit trail: %w", err)
		}
	}
	if uc.outbox != nil {
		if h.Events, err = uc.outbox.GetByAggregate(ctx, domain.AggregateTypeEntry, entryID, maxEntryEvents, 0); err != nil {
			return nil, fmt.Errorf("load entry events: %w", err)
		}
	}
	return h, nil
}
