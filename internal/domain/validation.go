package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge   = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrAmountTooSmall   = fmt.Errorf("%w: amount below minimum allowed", ErrValidation)
	ErrMetadataTooLarge = fmt.Errorf("%w: metadata size exceeds limit", ErrValidation)
	ErrInvalidEmail     = fmt.Errorf("%w: invalid email format", ErrValidation)
	ErrInvalidPixKey    = fmt.Errorf("%w: invalid pix key", ErrValidation)
	ErrInvalidReference = errors.New("invalid external reference")
)

// Validation constants
const (
	MaxMetadataSize    = 10240 // 10KB
	MaxEntryAmount     = "1000000000"
	MinEntryAmount     = "0.01"
	MaxReferenceLength = 128
)

// Pix key types accepted for withdrawals.
const (
	PixKeyCPF    = "cpf"
	PixKeyCNPJ   = "cnpj"
	PixKeyEmail  = "email"
	PixKeyPhone  = "phone"
	PixKeyRandom = "random"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	digitsRegex    = regexp.MustCompile(`^[0-9]+$`)
	phoneRegex     = regexp.MustCompile(`^\+?[0-9]{10,14}$`)
	randomKeyRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	referenceRegex = regexp.MustCompile(`^[A-Za-z0-9_\-:.]+$`)
)

// ValidateAmount validates an entry amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinEntryAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinEntryAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxEntryAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxEntryAmount)
	}

	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	size := 0
	for k, v := range metadata {
		size += len(k)
		size += len(fmt.Sprintf("%v", v))
	}

	if size > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, size, MaxMetadataSize)
	}

	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	return nil
}

// ValidateReference checks the shape of a caller-supplied external reference.
func ValidateReference(ref string) error {
	if ref == "" {
		return nil
	}
	if len(ref) > MaxReferenceLength || !referenceRegex.MatchString(ref) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidReference)
	}
	return nil
}

// ValidatePixKey checks a withdrawal destination key against its declared type.
func ValidatePixKey(key, keyType string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidPixKey)
	}

	switch strings.ToLower(keyType) {
	case PixKeyCPF:
		if len(key) != 11 || !digitsRegex.MatchString(key) {
			return fmt.Errorf("%w: cpf must have 11 digits", ErrInvalidPixKey)
		}
	case PixKeyCNPJ:
		if len(key) != 14 || !digitsRegex.MatchString(key) {
			return fmt.Errorf("%w: cnpj must have 14 digits", ErrInvalidPixKey)
		}
	case PixKeyEmail:
		if err := ValidateEmail(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPixKey, err)
		}
	case PixKeyPhone:
		if !phoneRegex.MatchString(key) {
			return fmt.Errorf("%w: malformed phone", ErrInvalidPixKey)
		}
	case PixKeyRandom:
		if !randomKeyRegex.MatchString(key) {
			return fmt.Errorf("%w: malformed random key", ErrInvalidPixKey)
		}
	default:
		return fmt.Errorf("%w: unknown key type %q", ErrInvalidPixKey, keyType)
	}

	return nil
}

// MaskCardNumber keeps only the last four digits of a card number.
func MaskCardNumber(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
