package dto

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// TrackingParams carries attribution fields as the landing page captured them.
type TrackingParams struct {
	UTMSource   string `json:"utm_source,omitempty" validate:"max=255"`
	UTMMedium   string `json:"utm_medium,omitempty" validate:"max=255"`
	UTMCampaign string `json:"utm_campaign,omitempty" validate:"max=255"`
	UTMContent  string `json:"utm_content,omitempty" validate:"max=255"`
	UTMTerm     string `json:"utm_term,omitempty" validate:"max=255"`
	Src         string `json:"src,omitempty" validate:"max=255"`
	Sck         string `json:"sck,omitempty" validate:"max=255"`
	FBClid      string `json:"fbclid,omitempty" validate:"max=512"`
	GClid       string `json:"gclid,omitempty" validate:"max=512"`
	UserAgent   string `json:"user_agent,omitempty" validate:"max=1024"`
	PageURL     string `json:"page_url,omitempty" validate:"omitempty,max=2048"`
	Referrer    string `json:"referrer,omitempty" validate:"max=2048"`
}

// ToDomain converts to domain attribution params.
func (p *TrackingParams) ToDomain() domain.AttributionParams {
	if p == nil {
		return domain.AttributionParams{}
	}
	return domain.AttributionParams{
		UTMSource:   p.UTMSource,
		UTMMedium:   p.UTMMedium,
		UTMCampaign: p.UTMCampaign,
		UTMContent:  p.UTMContent,
		UTMTerm:     p.UTMTerm,
		Src:         p.Src,
		Sck:         p.Sck,
		FBClid:      p.FBClid,
		GClid:       p.GClid,
		UserAgent:   p.UserAgent,
		PageURL:     p.PageURL,
		Referrer:    p.Referrer,
	}
}

// GeneratePixRequest asks for a PIX deposit charge.
type GeneratePixRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Description    string          `json:"description,omitempty" validate:"max=255"`
	TrackingParams *TrackingParams `json:"trackingParams,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *GeneratePixRequest) ToUseCaseInput(userID, clientIP, userAgent string) usecase.GeneratePixInput {
	params := r.TrackingParams.ToDomain()
	if params.UserAgent == "" {
		params.UserAgent = userAgent
	}
	return usecase.GeneratePixInput{
		UserID:      userID,
		Amount:      r.Amount,
		Description: r.Description,
		Attribution: params,
		ClientIP:    clientIP,
	}
}

// PixWebhookPayload is the provider's payment notification.
type PixWebhookPayload struct {
	Status          string           `json:"status"`
	TransactionID   string           `json:"transactionId"`
	ExternalID      string           `json:"externalId"`
	ExternalIDSnake string           `json:"external_id"`
	DateApproval    string           `json:"dateApproval"`
	CreditParty     map[string]any   `json:"creditParty"`
	Amount          *decimal.Decimal `json:"amount"`
}

// ParsePixWebhook accepts the payload either bare or wrapped in
// {"requestBody": {...}}.
func ParsePixWebhook(body []byte) (usecase.PixWebhookInput, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return usecase.PixWebhookInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if inner, ok := envelope["requestBody"]; ok {
		body = inner
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return usecase.PixWebhookInput{}, domain.ErrInvalidPayload
	}
	var p PixWebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return usecase.PixWebhookInput{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	ref := p.ExternalID
	if ref == "" {
		ref = p.ExternalIDSnake
	}
	return usecase.PixWebhookInput{
		Status:            p.Status,
		TransactionID:     strings.TrimSpace(p.TransactionID),
		ExternalReference: strings.TrimSpace(ref),
		DateApproval:      p.DateApproval,
		CreditParty:       p.CreditParty,
		Amount:            p.Amount,
		Raw:               raw,
	}, nil
}

// RequestWithdrawalRequest asks to pay out to a PIX key.
type RequestWithdrawalRequest struct {
	Amount            decimal.Decimal `json:"amount" validate:"gt=0"`
	PixKey            string          `json:"pix_key" validate:"required,max=140"`
	PixKeyType        string          `json:"pix_key_type" validate:"required,oneof=cpf cnpj email phone random"`
	ExternalReference string          `json:"external_reference,omitempty" validate:"max=128"`
	Description       string          `json:"description,omitempty" validate:"max=255"`
}

// ToUseCaseInput converts to use case input.
func (r *RequestWithdrawalRequest) ToUseCaseInput(userID string) usecase.RequestWithdrawalInput {
	return usecase.RequestWithdrawalInput{
		UserID:            userID,
		Amount:            r.Amount,
		PixKey:            strings.TrimSpace(r.PixKey),
		PixKeyType:        r.PixKeyType,
		ExternalReference: r.ExternalReference,
		Description:       r.Description,
	}
}

// SettleRequest carries the operator's note for confirm, cancel or fail.
type SettleRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// GameplayRequest is a stake, a payout or a bonus.
type GameplayRequest struct {
	UserID            string          `json:"user_id,omitempty"`
	Amount            decimal.Decimal `json:"amount" validate:"gt=0"`
	GameID            string          `json:"game_id,omitempty" validate:"max=128"`
	BetEntryID        string          `json:"bet_entry_id,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty" validate:"max=128"`
	Description       string          `json:"description,omitempty" validate:"max=255"`
}

// ToUseCaseInput converts to use case input.
func (r *GameplayRequest) ToUseCaseInput(userID string) usecase.GameplayInput {
	return usecase.GameplayInput{
		UserID:            userID,
		Amount:            r.Amount,
		GameID:            r.GameID,
		BetEntryID:        r.BetEntryID,
		ExternalReference: r.ExternalReference,
		Description:       r.Description,
	}
}

// AdjustBalanceRequest sets a user's balance to an absolute value.
type AdjustBalanceRequest struct {
	Balance decimal.Decimal `json:"balance" validate:"gte=0"`
	Reason  string          `json:"reason" validate:"required,max=500"`
}

// CreateUserRequest opens an account.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"max=32"`
	Document string `json:"document,omitempty" validate:"max=32"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin operator player"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateUserRequest) ToUseCaseInput() usecase.CreateUserInput {
	return usecase.CreateUserInput{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Document: r.Document,
		Role:     domain.Role(r.Role),
	}
}

// UpdateUserStatusRequest changes an account's administrative state.
type UpdateUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE INACTIVE BLOCKED"`
}
