package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
)

// GameplayUseCase records stakes and payouts. Each is created PENDING and
// settled through the reconciliation engine right away.
type GameplayUseCase struct {
	entries *EntryUseCase
	engine  *ReconciliationUseCase
	users   UserRepository
	logger  zerolog.Logger
}

// NewGameplayUseCase creates a GameplayUseCase.
func NewGameplayUseCase(entries *EntryUseCase, engine *ReconciliationUseCase, users UserRepository, logger zerolog.Logger) *GameplayUseCase {
	return &GameplayUseCase{entries: entries, engine: engine, users: users, logger: logger}
}

// GameplayInput describes a stake or a payout.
type GameplayInput struct {
	UserID            string
	Amount            decimal.Decimal
	GameID            string
	BetEntryID        string
	ExternalReference string
	Description       string
}

// PlaceBet debits a stake. Without enough balance the bet ends FAILED and
// domain.ErrInsufficientFunds is returned with it.
func (uc *GameplayUseCase) PlaceBet(ctx context.Context, in GameplayInput) (*domain.LedgerEntry, error) {
	user, err := uc.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.NewPolicyViolation(domain.ReasonAccountNotActive, "account is %s", user.Status)
	}
	return uc.record(ctx, domain.EntryTypeBet, in, "Bet")
}

// CreditWin credits a payout, optionally tied to the bet that won it.
func (uc *GameplayUseCase) CreditWin(ctx context.Context, in GameplayInput) (*domain.LedgerEntry, error) {
	if in.BetEntryID != "" {
		bet, err := uc.entries.GetEntry(ctx, in.BetEntryID, in.UserID)
		if err != nil {
			return nil, err
		}
		if bet.Type != domain.EntryTypeBet || bet.Status != domain.EntryStatusCompleted {
			return nil, domain.ErrInvalidTransition
		}
	}
	return uc.record(ctx, domain.EntryTypeWin, in, "Win")
}

// CreditBonus credits a promotional amount.
func (uc *GameplayUseCase) CreditBonus(ctx context.Context, in GameplayInput) (*domain.LedgerEntry, error) {
	return uc.record(ctx, domain.EntryTypeBonus, in, "Bonus")
}

func (uc *GameplayUseCase) record(ctx context.Context, t domain.EntryType, in GameplayInput, fallback string) (*domain.LedgerEntry, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}

	description := in.Description
	if description == "" {
		description = fallback
	}

	metadata := domain.Metadata{}
	if in.GameID != "" {
		metadata[domain.MetaGameID] = in.GameID
	}
	if in.BetEntryID != "" {
		metadata[domain.MetaBetEntryID] = in.BetEntryID
	}

	entry, err := uc.entries.CreatePending(ctx, &domain.LedgerEntry{
		UserID:            in.UserID,
		Type:              t,
		Amount:            in.Amount,
		PaymentMethod:     domain.PaymentMethodCredit,
		ExternalReference: in.ExternalReference,
		Description:       description,
		Metadata:          metadata,
	})
	if err != nil {
		return nil, err
	}

	settled, err := uc.engine.CompleteEntry(ctx, entry.ID, nil)
	if err != nil {
		uc.logger.Warn().Err(err).
			Str("entry_id", entry.ID).
			Str("type", string(t)).
			Msg("gameplay entry not completed")
		return settled, err
	}
	return settled, nil
}
