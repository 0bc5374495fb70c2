package handler

import (
	"context"
	"net/http"

	"github.com/iho/betledger/internal/domain"
)

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Generate(p *domain.Principal) (string, error)
}

// UserLookup loads accounts.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.UserAccount, error)
}

// AuthHandler handles token endpoints.
type AuthHandler struct {
	tokens TokenIssuer
	users  UserLookup
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokens TokenIssuer, users UserLookup) *AuthHandler {
	return &AuthHandler{tokens: tokens, users: users}
}

// IssueTokenRequest names the account a token is minted for.
type IssueTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// TokenResponse carries a signed token and the identity inside it.
type TokenResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// UserInfo represents user information.
type UserInfo struct {
	ID    string      `json:"id"`
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role"`
}

// IssueToken mints a token for an active account, carrying its role.
// Operators use it to hand out credentials; there is no password login.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	user, err := h.users.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeDomainError(w, "failed to load user", err)
		return
	}
	if user.Status != domain.AccountStatusActive {
		writeError(w, http.StatusUnprocessableEntity, "account not active", string(user.Status))
		return
	}

	principal := &domain.Principal{ID: user.ID, Email: user.Email, Role: user.Role}
	token, err := h.tokens.Generate(principal)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token", "")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token: token,
		User:  UserInfo{ID: principal.ID, Email: principal.Email, Role: principal.Role},
	})
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := domain.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	writeJSON(w, http.StatusOK, UserInfo{ID: p.ID, Email: p.Email, Role: p.Role})
}
