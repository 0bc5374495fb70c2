package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType identifies what kind of balance-affecting event an entry records.
type EntryType string

const (
	EntryTypeDeposit          EntryType = "DEPOSIT"
	EntryTypeWithdrawal       EntryType = "WITHDRAWAL"
	EntryTypeBet              EntryType = "BET"
	EntryTypeWin              EntryType = "WIN"
	EntryTypeBonus            EntryType = "BONUS"
	EntryTypeAdjustmentCredit EntryType = "ADJUSTMENT_CREDIT"
	EntryTypeAdjustmentDebit  EntryType = "ADJUSTMENT_DEBIT"
)

var validEntryTypes = map[EntryType]bool{
	EntryTypeDeposit:          true,
	EntryTypeWithdrawal:       true,
	EntryTypeBet:              true,
	EntryTypeWin:              true,
	EntryTypeBonus:            true,
	EntryTypeAdjustmentCredit: true,
	EntryTypeAdjustmentDebit:  true,
}

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	return validEntryTypes[t]
}

// RequiresPaymentMethod reports whether entries of this type must name a payment method.
func (t EntryType) RequiresPaymentMethod() bool {
	return t == EntryTypeDeposit || t == EntryTypeWithdrawal
}

// EntryStatus is the lifecycle state of an entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// IsValid reports whether s is a known status.
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusPending, EntryStatusCompleted, EntryStatusFailed, EntryStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusFailed || s == EntryStatusCancelled
}

// CanTransitionTo reports whether s -> next is an allowed edge.
// Only PENDING may move, and only to a terminal state.
func (s EntryStatus) CanTransitionTo(next EntryStatus) bool {
	return s == EntryStatusPending && next.IsTerminal()
}

// PaymentMethod is the rail a deposit or withdrawal travels on.
type PaymentMethod string

const (
	PaymentMethodPix          PaymentMethod = "PIX"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCrypto       PaymentMethod = "CRYPTO"
	PaymentMethodCredit       PaymentMethod = "CREDIT"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodSystem       PaymentMethod = "SYSTEM"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodBankTransfer, PaymentMethodCrypto,
		PaymentMethodCredit, PaymentMethodCreditCard, PaymentMethodSystem:
		return true
	}
	return false
}

// Metadata is the free-form structured payload attached to an entry.
type Metadata map[string]any

// Merge returns a copy of m with patch applied on top.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the value under key if it is a non-empty string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Well-known metadata keys.
const (
	MetaPixTransactionID    = "pixTransactionId"
	MetaDateApproval        = "dateApproval"
	MetaPayerInfo           = "payerInfo"
	MetaWebhookData         = "webhookData"
	MetaPaymentMethod       = "paymentMethod"
	MetaReferenceMatch      = "referenceMatch"
	MetaCompletedAt         = "completedAt"
	MetaQRCode              = "qrCode"
	MetaExpiration          = "expiration"
	MetaGatewayError        = "gatewayError"
	MetaCardNumber          = "cardNumber"
	MetaBonus               = "bonus"
	MetaPixKey              = "pixKey"
	MetaPixKeyType          = "pixKeyType"
	MetaFailureReason       = "failureReason"
	MetaActor               = "actor"
	MetaReason              = "reason"
	MetaPreviousBalance     = "previousBalance"
	MetaAmountMismatch      = "amountMismatch"
	MetaPaidAmount          = "paidAmount"
	MetaClientIP            = "clientIp"
	MetaGameID              = "gameId"
	MetaBetEntryID          = "betEntryId"
	MetaAttributionSuccess  = "attributionSuccess"
	MetaAttributionAttempts = "attributionAttempts"
	MetaAttributionError    = "attributionError"
	MetaAttributionSource   = "attributionSource"
)

// Reference match modes recorded under MetaReferenceMatch.
const (
	ReferenceMatchExternal      = "reference"
	ReferenceMatchProvider      = "provider_transaction_id"
	ReferenceMatchLatestPending = "latest_pending_fallback"
)

// LedgerEntry is a durable record of one balance-affecting event.
type LedgerEntry struct {
	ID                    string
	UserID                string
	Type                  EntryType
	Amount                decimal.Decimal
	Status                EntryStatus
	PaymentMethod         PaymentMethod
	ExternalReference     string
	ProviderTransactionID string
	Description           string
	AttributionParams     AttributionParams
	Metadata              Metadata
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate checks the creation-time invariants of an entry.
func (e *LedgerEntry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntryType, e.Type)
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if e.Type.RequiresPaymentMethod() && e.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required for %s", ErrInvalidPaymentMethod, e.Type)
	}
	if e.PaymentMethod != "" && !e.PaymentMethod.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, e.PaymentMethod)
	}
	if e.Status != "" && e.Status != EntryStatusPending {
		return fmt.Errorf("%w: entries are created PENDING", ErrInvalidTransition)
	}
	return ValidateMetadata(e.Metadata)
}

// ValidateCompletion checks the per-type metadata an entry must carry
// before it may become COMPLETED.
func (e *LedgerEntry) ValidateCompletion(metadata Metadata) error {
	if e.Type == EntryTypeDeposit && e.PaymentMethod == PaymentMethodCreditCard {
		if metadata.String(MetaCardNumber) == "" {
			return fmt.Errorf("%w: %s", ErrMissingCardMetadata, MetaCardNumber)
		}
		if _, ok := metadata[MetaBonus].(bool); !ok {
			return fmt.Errorf("%w: %s", ErrMissingCardMetadata, MetaBonus)
		}
	}
	return nil
}

// IsCredit reports whether completing this entry adds to the balance.
func (e *LedgerEntry) IsCredit() bool {
	switch e.Type {
	case EntryTypeDeposit, EntryTypeWin, EntryTypeBonus, EntryTypeAdjustmentCredit:
		return true
	}
	return false
}

// IsDebitOnCompletion reports whether completing this entry subtracts from the balance.
// Withdrawals are debited at request time and are not included.
func (e *LedgerEntry) IsDebitOnCompletion() bool {
	return e.Type == EntryTypeBet || e.Type == EntryTypeAdjustmentDebit
}

// HoldsReservation reports whether the entry's amount is currently reserved
// out of the owner's balance.
func (e *LedgerEntry) HoldsReservation() bool {
	return e.Type == EntryTypeWithdrawal && e.Status == EntryStatusPending
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	UserID string
	Type   EntryType
	Status EntryStatus
	Limit  int
	Offset int
}

// NewPixExternalID mints the reference correlating a PIX charge with its entry.
func NewPixExternalID(userID string, at time.Time) string {
	return fmt.Sprintf("PIX_%d_%s", at.UnixMilli(), userID)
}
