package domain

import (
	"context"
	"errors"
)

// Role represents a user's access level
type Role string

const (
	// RoleAdmin can adjust balances and settle entries
	RoleAdmin Role = "admin"

	// RoleOperator can confirm, cancel and fail pending entries
	RoleOperator Role = "operator"

	// RolePlayer can move money on their own account only
	RolePlayer Role = "player"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RolePlayer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanSettle checks if the role can confirm, cancel or fail entries
func (r Role) CanSettle() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanAdjustBalances checks if the role can overwrite balances
func (r Role) CanAdjustBalances() bool {
	return r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the authenticated caller from ctx.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ActorID returns the caller id recorded on audit trails, or "system".
func ActorID(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok && p.ID != "" {
		return p.ID
	}
	return "system"
}
