package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the administrative state of a user account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusBlocked  AccountStatus = "BLOCKED"
)

// IsValid reports whether s is a known account status.
func (s AccountStatus) IsValid() bool {
	return s == AccountStatusActive || s == AccountStatusInactive || s == AccountStatusBlocked
}

// UserAccount is a player account holding a spendable balance.
// Balance is only ever changed by ledger processing.
type UserAccount struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Document  string
	Role      Role
	Status    AccountStatus
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account may originate money movements.
func (a *UserAccount) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanDebit reports whether the balance covers amount.
func (a *UserAccount) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
