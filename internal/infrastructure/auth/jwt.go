package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/betledger/internal/domain"
)

// DefaultIssuer is stamped into and required from every token.
const DefaultIssuer = "betledger"

// Claims carries the caller identity. The user id travels as the standard
// subject claim.
type Claims struct {
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the caller identity.
func (c *Claims) Principal() *domain.Principal {
	return &domain.Principal{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// JWTManager signs and verifies HS256 bearer tokens.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	issuer        string
	now           func() time.Time
}

// Option configures a JWTManager.
type Option func(*JWTManager)

// WithIssuer overrides DefaultIssuer.
func WithIssuer(issuer string) Option {
	return func(m *JWTManager) { m.issuer = issuer }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) { m.now = now }
}

// NewJWTManager creates a JWTManager issuing tokens valid for tokenDuration.
func NewJWTManager(secretKey string, tokenDuration time.Duration, opts ...Option) *JWTManager {
	m := &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		issuer:        DefaultIssuer,
		now:           time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Generate signs a token for p.
func (m *JWTManager) Generate(p *domain.Principal) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("%w: empty subject", domain.ErrInvalidToken)
	}
	if !p.Role.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInsufficientRole, p.Role)
	}

	now := m.now()
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Verify checks the signature, issuer and validity window of tokenString.
// Expired tokens yield domain.ErrExpiredToken, anything else
// domain.ErrInvalidToken.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrExpiredToken
	case err != nil:
		return nil, domain.ErrInvalidToken
	}

	if claims.Subject == "" || !claims.Role.IsValid() {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
