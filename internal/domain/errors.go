package domain

import (
	"errors"
	"fmt"
)

var (
	// Input errors
	ErrValidation           = errors.New("validation failed")
	ErrInvalidAmount        = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidPayload       = fmt.Errorf("%w: invalid webhook payload", ErrValidation)
	ErrInvalidEntryType     = fmt.Errorf("%w: invalid entry type", ErrValidation)
	ErrInvalidEntryStatus   = fmt.Errorf("%w: invalid entry status", ErrValidation)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", ErrValidation)
	ErrMissingCardMetadata  = fmt.Errorf("%w: card deposit metadata missing", ErrValidation)

	// Lookup errors
	ErrNotFound      = errors.New("not found")
	ErrEntryNotFound = fmt.Errorf("entry %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)

	// Ledger errors
	ErrDuplicateReference = errors.New("external reference already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyProcessed   = errors.New("entry already processed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPolicyViolation    = errors.New("policy violation")

	// Collaborator errors
	ErrUpstreamGateway     = errors.New("payment gateway error")
	ErrAttributionDelivery = errors.New("attribution delivery failed")
)

// PolicyReason names the rule a request broke.
type PolicyReason string

const (
	ReasonAmountBelowMinimum  PolicyReason = "amount_below_minimum"
	ReasonAmountAboveMaximum  PolicyReason = "amount_above_maximum"
	ReasonDailyLimitExceeded  PolicyReason = "daily_limit_exceeded"
	ReasonInsufficientBalance PolicyReason = "insufficient_balance"
	ReasonAccountNotActive    PolicyReason = "account_not_active"
)

// PolicyViolation is returned when a limit or risk rule rejects a request.
type PolicyViolation struct {
	Reason  PolicyReason
	Message string
}

func (v *PolicyViolation) Error() string {
	return fmt.Sprintf("%s: %s", ErrPolicyViolation.Error(), v.Message)
}

func (v *PolicyViolation) Unwrap() error {
	return ErrPolicyViolation
}

// NewPolicyViolation builds a PolicyViolation with a formatted message.
func NewPolicyViolation(reason PolicyReason, format string, args ...any) *PolicyViolation {
	return &PolicyViolation{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsPolicyViolation extracts a PolicyViolation from err.
func AsPolicyViolation(err error) (*PolicyViolation, bool) {
	var v *PolicyViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
