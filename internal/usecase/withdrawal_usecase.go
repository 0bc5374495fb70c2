package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// WithdrawalUseCase opens withdrawals: policy check and reservation happen
// in one transaction holding the user's row lock.
type WithdrawalUseCase struct {
	txManager TransactionManager
	users     UserRepository
	entries   EntryRepository
	balances  *BalanceAccessor
	policy    *WithdrawalPolicy
	outbox    OutboxRepository
	audit     AuditRepository
	retrier   Retrier
	idGen     IDGenerator
	clock     Clock
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// WithdrawalConfig wires a WithdrawalUseCase.
type WithdrawalConfig struct {
	TxManager TransactionManager
	Users     UserRepository
	Entries   EntryRepository
	Balances  *BalanceAccessor
	Policy    *WithdrawalPolicy
	Outbox    OutboxRepository
	Audit     AuditRepository
	Retrier   Retrier
	IDGen     IDGenerator
	Clock     Clock
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// NewWithdrawalUseCase creates a WithdrawalUseCase.
func NewWithdrawalUseCase(cfg WithdrawalConfig) *WithdrawalUseCase {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Policy == nil {
		cfg.Policy = NewWithdrawalPolicy(DefaultWithdrawalLimits())
	}
	return &WithdrawalUseCase{
		txManager: cfg.TxManager,
		users:     cfg.Users,
		entries:   cfg.Entries,
		balances:  cfg.Balances,
		policy:    cfg.Policy,
		outbox:    cfg.Outbox,
		audit:     cfg.Audit,
		retrier:   cfg.Retrier,
		idGen:     cfg.IDGen,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// RequestWithdrawalInput asks to pay out part of the balance.
type RequestWithdrawalInput struct {
	UserID            string
	Amount            decimal.Decimal
	PixKey            string
	PixKeyType        string
	ExternalReference string
	Description       string
}

// RequestWithdrawal evaluates the policy, creates a PENDING withdrawal and
// reserves its amount from the balance immediately.
func (uc *WithdrawalUseCase) RequestWithdrawal(ctx context.Context, in RequestWithdrawalInput) (*domain.LedgerEntry, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidatePixKey(in.PixKey, in.PixKeyType); err != nil {
		return nil, err
	}
	if err := domain.ValidateReference(in.ExternalReference); err != nil {
		return nil, err
	}

	var entry *domain.LedgerEntry
	err := withRetry(ctx, uc.retrier, func() error {
		var err error
		entry, err = uc.requestOnce(ctx, in)
		return err
	})
	if err != nil {
		if v, ok := domain.AsPolicyViolation(err); ok && uc.metrics != nil {
			uc.metrics.PolicyRejections.WithLabelValues(string(v.Reason)).Inc()
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesCreated.WithLabelValues(string(domain.EntryTypeWithdrawal)).Inc()
		uc.metrics.EntryAmount.WithLabelValues(string(domain.EntryTypeWithdrawal)).Observe(entry.Amount.InexactFloat64())
	}

	uc.logger.Info().
		Str("entry_id", entry.ID).
		Str("user_id", entry.UserID).
		Str("amount", entry.Amount.String()).
		Msg("withdrawal requested")

	return entry, nil
}

func (uc *WithdrawalUseCase) requestOnce(ctx context.Context, in RequestWithdrawalInput) (*domain.LedgerEntry, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Serializes withdrawals of one user so the daily total cannot be raced.
	user, err := uc.users.GetByIDForUpdate(txCtx, tx, in.UserID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	today, err := uc.entries.SumWithdrawalsSince(txCtx, tx, user.ID, uc.policy.DayStart(now))
	if err != nil {
		return nil, err
	}

	if err := uc.policy.Evaluate(WithdrawalCheck{
		Amount:        in.Amount,
		Balance:       user.Balance,
		TodayTotal:    today,
		AccountStatus: user.Status,
	}); err != nil {
		return nil, err
	}

	description := in.Description
	if description == "" {
		description = "PIX withdrawal"
	}

	entry := &domain.LedgerEntry{
		ID:                uc.idGen.Generate(),
		UserID:            user.ID,
		Type:              domain.EntryTypeWithdrawal,
		Amount:            in.Amount,
		Status:            domain.EntryStatusPending,
		PaymentMethod:     domain.PaymentMethodPix,
		ExternalReference: in.ExternalReference,
		Description:       description,
		Metadata: domain.Metadata{
			domain.MetaPixKey:     strings.TrimSpace(in.PixKey),
			domain.MetaPixKeyType: strings.ToLower(in.PixKeyType),
			"requestedAt":         now.Format(time.RFC3339Nano),
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

	if err := uc.balances.Reserve(txCtx, tx, user.ID, entry.Amount, now); err != nil {
		return nil, err
	}

	if err := emitEntryEvent(txCtx, tx, uc.outbox, uc.idGen, entry, domain.EventTypeEntryCreated, now); err != nil {
		return nil, err
	}

	if err := writeAudit(txCtx, tx, uc.audit, uc.idGen, domain.AuditActionWithdrawalOpen,
		domain.AggregateTypeEntry, entry.ID, nil, entry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}
	countAudit(uc.metrics, domain.AuditActionWithdrawalOpen)

	return entry, nil
}

// History lists a user's withdrawals, newest first.
func (uc *WithdrawalUseCase) History(ctx context.Context, userID string, status domain.EntryStatus, limit, offset int) (*EntryPage, error) {
	if status != "" && !status.IsValid() {
		return nil, domain.ErrInvalidEntryStatus
	}

	limit, offset, _ = domain.ValidatePagination(limit, offset)
	filter := domain.EntryFilter{
		UserID: userID,
		Type:   domain.EntryTypeWithdrawal,
		Status: status,
		Limit:  limit,
		Offset: offset,
	}

	entries, err := uc.entries.ListByUser(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := uc.entries.CountByUser(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &EntryPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// LimitsView describes a user's withdrawal allowance for today.
type LimitsView struct {
	Min            decimal.Decimal
	Max            decimal.Decimal
	DailyCap       decimal.Decimal
	UsedToday      decimal.Decimal
	RemainingToday decimal.Decimal
	Balance        decimal.Decimal
}

// Limits reports the configured limits and what is left for today.
func (uc *WithdrawalUseCase) Limits(ctx context.Context, userID string) (*LimitsView, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	used, err := uc.entries.SumWithdrawalsSince(ctx, nil, userID, uc.policy.DayStart(uc.clock.Now()))
	if err != nil {
		return nil, err
	}

	l := uc.policy.Limits()
	return &LimitsView{
		Min:            l.Min,
		Max:            l.Max,
		DailyCap:       l.DailyCap,
		UsedToday:      used,
		RemainingToday: uc.policy.Remaining(used),
		Balance:        user.Balance,
	}, nil
}
