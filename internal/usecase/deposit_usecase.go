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

// QRRenderer turns a PIX copy-and-paste code into an image data URI.
type QRRenderer interface {
	Render(content string) (string, error)
}

// DepositLimits bounds a single deposit.
type DepositLimits struct {
	Min         decimal.Decimal
	Max         decimal.Decimal
	Description string
}

// DepositUseCase generates PIX charges for deposits.
type DepositUseCase struct {
	entries     *EntryUseCase
	users       UserRepository
	gateway     PaymentGateway
	qr          QRRenderer
	attribution *AttributionUseCase
	limits      DepositLimits
	clock       Clock
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewDepositUseCase creates a DepositUseCase. qr and attribution may be nil.
func NewDepositUseCase(
	entries *EntryUseCase,
	users UserRepository,
	gateway PaymentGateway,
	qr QRRenderer,
	attribution *AttributionUseCase,
	limits DepositLimits,
	clock Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *DepositUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if limits.Min.IsZero() {
		limits.Min = decimal.NewFromInt(1)
	}
	if limits.Description == "" {
		limits.Description = "Deposit"
	}
	return &DepositUseCase{
		entries:     entries,
		users:       users,
		gateway:     gateway,
		qr:          qr,
		attribution: attribution,
		limits:      limits,
		clock:       clock,
		metrics:     m,
		logger:      logger,
	}
}

// GeneratePixInput requests a PIX charge.
type GeneratePixInput struct {
	UserID      string
	Amount      decimal.Decimal
	Description string
	Attribution domain.AttributionParams
	ClientIP    string
}

// GeneratePixOutput is the pending deposit and the charge to show the payer.
type GeneratePixOutput struct {
	Entry  *domain.LedgerEntry
	Charge *PixCharge
}

// GeneratePix records a PENDING deposit and asks the gateway for a charge.
// If the gateway fails the entry stays PENDING and domain.ErrUpstreamGateway
// is returned alongside it.
func (uc *DepositUseCase) GeneratePix(ctx context.Context, in GeneratePixInput) (*GeneratePixOutput, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.Amount.LessThan(uc.limits.Min) {
		return nil, fmt.Errorf("%w: minimum deposit is %s", domain.ErrAmountTooSmall, uc.limits.Min.StringFixed(2))
	}
	if !uc.limits.Max.IsZero() && in.Amount.GreaterThan(uc.limits.Max) {
		return nil, fmt.Errorf("%w: maximum deposit is %s", domain.ErrAmountTooLarge, uc.limits.Max.StringFixed(2))
	}

	user, err := uc.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.NewPolicyViolation(domain.ReasonAccountNotActive, "account is %s", user.Status)
	}

	description := in.Description
	if description == "" {
		description = uc.limits.Description
	}

	params := in.Attribution
	if params.IP == "" {
		params.IP = in.ClientIP
	}

	metadata := domain.Metadata{}
	if in.ClientIP != "" {
		metadata[domain.MetaClientIP] = in.ClientIP
	}

	entry, err := uc.entries.CreatePending(ctx, &domain.LedgerEntry{
		UserID:            user.ID,
		Type:              domain.EntryTypeDeposit,
		Amount:            in.Amount,
		PaymentMethod:     domain.PaymentMethodPix,
		ExternalReference: domain.NewPixExternalID(user.ID, uc.clock.Now()),
		Description:       description,
		AttributionParams: params,
		Metadata:          metadata,
	})
	if err != nil {
		return nil, err
	}

	charge, err := uc.gateway.CreatePixCharge(ctx, PixChargeRequest{
		Amount:      in.Amount,
		Description: description,
		ExternalID:  entry.ExternalReference,
		Payer: PixPayer{
			Name:     user.Name,
			Email:    user.Email,
			Document: user.Document,
		},
	})
	if err != nil {
		uc.countGateway("failure")
		if !errors.Is(err, domain.ErrUpstreamGateway) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamGateway, err)
		}
		if merr := uc.entries.RecordMetadata(ctx, entry.ID, domain.Metadata{domain.MetaGatewayError: err.Error()}); merr != nil {
			uc.logger.Error().Err(merr).Str("entry_id", entry.ID).Msg("failed to record gateway error")
		}
		uc.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("pix charge creation failed")
		return &GeneratePixOutput{Entry: entry}, err
	}
	uc.countGateway("success")

	if charge.QRCodeImage == "" && uc.qr != nil && charge.QRCode != "" {
		img, qerr := uc.qr.Render(charge.QRCode)
		if qerr != nil {
			uc.logger.Warn().Err(qerr).Str("entry_id", entry.ID).Msg("qr image rendering failed")
		} else {
			charge.QRCodeImage = img
		}
	}

	patch := domain.Metadata{domain.MetaQRCode: charge.QRCode}
	if !charge.Expiration.IsZero() {
		patch[domain.MetaExpiration] = charge.Expiration.UTC().Format(time.RFC3339)
	}
	if err := uc.entries.AttachCharge(ctx, entry.ID, charge.ProviderTransactionID, patch); err != nil {
		return nil, fmt.Errorf("attach charge to entry %s: %w", entry.ID, err)
	}
	entry.ProviderTransactionID = charge.ProviderTransactionID
	entry.Metadata = entry.Metadata.Merge(patch)

	if uc.attribution != nil {
		snap := snapshot(entry)
		go uc.attribution.NotifyPixGenerated(context.WithoutCancel(ctx), snap, user)
	}

	uc.logger.Info().
		Str("entry_id", entry.ID).
		Str("user_id", user.ID).
		Str("external_reference", entry.ExternalReference).
		Str("amount", entry.Amount.String()).
		Msg("pix charge generated")

	return &GeneratePixOutput{Entry: entry, Charge: charge}, nil
}

func (uc *DepositUseCase) countGateway(outcome string) {
	if uc.metrics != nil {
		uc.metrics.GatewayRequests.WithLabelValues(outcome).Inc()
	}
}
