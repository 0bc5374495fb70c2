package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
)

// WithdrawalLimits configures the withdrawal policy.
type WithdrawalLimits struct {
	Min      decimal.Decimal
	Max      decimal.Decimal
	DailyCap decimal.Decimal
	// Location defines where "today" starts. Defaults to UTC.
	Location *time.Location
}

// DefaultWithdrawalLimits returns the platform defaults: 50..5000 per request, 10000 per day.
func DefaultWithdrawalLimits() WithdrawalLimits {
	return WithdrawalLimits{
		Min:      decimal.NewFromInt(50),
		Max:      decimal.NewFromInt(5000),
		DailyCap: decimal.NewFromInt(10000),
		Location: time.UTC,
	}
}

// WithdrawalCheck is everything the policy looks at.
type WithdrawalCheck struct {
	Amount        decimal.Decimal
	Balance       decimal.Decimal
	TodayTotal    decimal.Decimal
	AccountStatus domain.AccountStatus
}

// WithdrawalPolicy evaluates withdrawal requests. It has no side effects.
type WithdrawalPolicy struct {
	limits WithdrawalLimits
}

// NewWithdrawalPolicy creates a policy with the given limits.
func NewWithdrawalPolicy(limits WithdrawalLimits) *WithdrawalPolicy {
	if limits.Location == nil {
		limits.Location = time.UTC
	}
	return &WithdrawalPolicy{limits: limits}
}

// Limits returns the configured limits.
func (p *WithdrawalPolicy) Limits() WithdrawalLimits {
	return p.limits
}

// DayStart returns local midnight of the day containing now.
func (p *WithdrawalPolicy) DayStart(now time.Time) time.Time {
	local := now.In(p.limits.Location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.limits.Location)
}

// Remaining returns how much more can be withdrawn today.
func (p *WithdrawalPolicy) Remaining(todayTotal decimal.Decimal) decimal.Decimal {
	left := p.limits.DailyCap.Sub(todayTotal)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Evaluate returns a *domain.PolicyViolation naming the first rule c breaks.
func (p *WithdrawalPolicy) Evaluate(c WithdrawalCheck) error {
	if c.AccountStatus != "" && c.AccountStatus != domain.AccountStatusActive {
		return domain.NewPolicyViolation(domain.ReasonAccountNotActive, "account is %s", c.AccountStatus)
	}

	if c.Amount.LessThan(p.limits.Min) {
		return domain.NewPolicyViolation(domain.ReasonAmountBelowMinimum,
			"minimum withdrawal is %s", p.limits.Min.StringFixed(2))
	}

	if c.Amount.GreaterThan(p.limits.Max) {
		return domain.NewPolicyViolation(domain.ReasonAmountAboveMaximum,
			"maximum withdrawal is %s", p.limits.Max.StringFixed(2))
	}

	if c.TodayTotal.Add(c.Amount).GreaterThan(p.limits.DailyCap) {
		return domain.NewPolicyViolation(domain.ReasonDailyLimitExceeded,
			"daily limit of %s exceeded, %s remaining today",
			p.limits.DailyCap.StringFixed(2), p.Remaining(c.TodayTotal).StringFixed(2))
	}

	if c.Balance.LessThan(c.Amount) {
		return domain.NewPolicyViolation(domain.ReasonInsufficientBalance,
			"balance %s is below requested %s", c.Balance.StringFixed(2), c.Amount.StringFixed(2))
	}

	return nil
}
