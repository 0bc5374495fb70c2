package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID                    string                   `json:"id"`
	UserID                string                   `json:"user_id"`
	Type                  string                   `json:"type"`
	Amount                decimal.Decimal          `json:"amount"`
	Status                string                   `json:"status"`
	PaymentMethod         string                   `json:"payment_method,omitempty"`
	ExternalReference     string                   `json:"external_reference,omitempty"`
	ProviderTransactionID string                   `json:"provider_transaction_id,omitempty"`
	Description           string                   `json:"description,omitempty"`
	AttributionParams     domain.AttributionParams `json:"attribution_params"`
	Metadata              map[string]any           `json:"metadata,omitempty"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

// EntryFromDomain converts a domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	if e == nil {
		return nil
	}
	return &EntryResponse{
		ID:                    e.ID,
		UserID:                e.UserID,
		Type:                  string(e.Type),
		Amount:                e.Amount,
		Status:                string(e.Status),
		PaymentMethod:         string(e.PaymentMethod),
		ExternalReference:     e.ExternalReference,
		ProviderTransactionID: e.ProviderTransactionID,
		Description:           e.Description,
		AttributionParams:     e.AttributionParams,
		Metadata:              e.Metadata,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// EntryPageResponse is one page of entries.
type EntryPageResponse struct {
	Data   []*EntryResponse `json:"data"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// EntryPageFromUseCase converts a use case page to response.
func EntryPageFromUseCase(p *usecase.EntryPage) *EntryPageResponse {
	return &EntryPageResponse{
		Data:   EntriesFromDomain(p.Entries),
		Total:  p.Total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

// GeneratePixResponse is returned after a deposit charge is minted.
type GeneratePixResponse struct {
	EntryID     string          `json:"entry_id"`
	ExternalID  string          `json:"external_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	QRCode      string          `json:"qr_code"`
	QRCodeImage string          `json:"qr_code_image,omitempty"`
	Expiration  *time.Time      `json:"expiration,omitempty"`
}

// GeneratePixFromUseCase converts a use case output to response.
func GeneratePixFromUseCase(out *usecase.GeneratePixOutput) *GeneratePixResponse {
	resp := &GeneratePixResponse{
		EntryID:    out.Entry.ID,
		ExternalID: out.Entry.ExternalReference,
		Amount:     out.Entry.Amount,
		Status:     string(out.Entry.Status),
	}
	if c := out.Charge; c != nil {
		resp.QRCode = c.QRCode
		resp.QRCodeImage = c.QRCodeImage
		if !c.Expiration.IsZero() {
			exp := c.Expiration
			resp.Expiration = &exp
		}
	}
	return resp
}

// PixStatusResponse reports a deposit's state to its owner.
type PixStatusResponse struct {
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// PixStatusFromDomain converts a domain entry to a status response.
func PixStatusFromDomain(e *domain.LedgerEntry) *PixStatusResponse {
	return &PixStatusResponse{
		ExternalID: e.ExternalReference,
		Status:     string(e.Status),
		Amount:     e.Amount,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// WebhookResponse acknowledges a gateway notification.
type WebhookResponse struct {
	Success           bool   `json:"success"`
	EntryID           string `json:"entry_id,omitempty"`
	Status            string `json:"status,omitempty"`
	AlreadyProcessed  bool   `json:"already_processed"`
	ReferenceMatch    string `json:"reference_match,omitempty"`
	AttributionStatus string `json:"attribution_status"`
}

// WebhookFromUseCase converts a reconciliation result to response.
func WebhookFromUseCase(res *usecase.WebhookResult) *WebhookResponse {
	resp := &WebhookResponse{
		Success:           true,
		AlreadyProcessed:  res.AlreadyProcessed,
		ReferenceMatch:    res.ReferenceMatch,
		AttributionStatus: "skipped",
	}
	if res.Entry != nil {
		resp.EntryID = res.Entry.ID
		resp.Status = string(res.Entry.Status)
	}
	if a := res.Attribution; a != nil && !a.Skipped {
		resp.AttributionStatus = "failed"
		if a.Success {
			resp.AttributionStatus = "sent"
		}
	}
	return resp
}

// LimitsResponse describes today's withdrawal allowance.
type LimitsResponse struct {
	Min            decimal.Decimal `json:"min"`
	Max            decimal.Decimal `json:"max"`
	Daily          decimal.Decimal `json:"daily"`
	UsedToday      decimal.Decimal `json:"used_today"`
	RemainingToday decimal.Decimal `json:"remaining_today"`
	Balance        decimal.Decimal `json:"balance"`
}

// LimitsFromUseCase converts a use case view to response.
func LimitsFromUseCase(v *usecase.LimitsView) *LimitsResponse {
	return &LimitsResponse{
		Min:            v.Min,
		Max:            v.Max,
		Daily:          v.DailyCap,
		UsedToday:      v.UsedToday,
		RemainingToday: v.RemainingToday,
		Balance:        v.Balance,
	}
}

// AdjustmentResponse reports a balance correction.
type AdjustmentResponse struct {
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	Balance         decimal.Decimal `json:"balance"`
	Entry           *EntryResponse  `json:"entry,omitempty"`
}

// AdjustmentFromUseCase converts a use case result to response.
func AdjustmentFromUseCase(r *usecase.AdjustmentResult) *AdjustmentResponse {
	return &AdjustmentResponse{
		PreviousBalance: r.PreviousBalance,
		Balance:         r.Balance,
		Entry:           EntryFromDomain(r.Entry),
	}
}

// ConsistencyResponse compares stored and ledger-derived balances.
type ConsistencyResponse struct {
	UserID        string          `json:"user_id"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	Difference    decimal.Decimal `json:"difference"`
	Consistent    bool            `json:"consistent"`
	Status        string          `json:"status"`
}

// ConsistencyFromUseCase converts a use case report to response.
func ConsistencyFromUseCase(r *usecase.ConsistencyReport) *ConsistencyResponse {
	status := "ok"
	if !r.Consistent {
		status = "mismatch"
	}
	return &ConsistencyResponse{
		UserID:        r.UserID,
		StoredBalance: r.StoredBalance,
		LedgerBalance: r.LedgerBalance,
		Difference:    r.Difference,
		Consistent:    r.Consistent,
		Status:        status,
	}
}

// AttributionRecordResponse is a stored per-address attribution record.
type AttributionRecordResponse struct {
	IP          string                   `json:"ip"`
	Params      domain.AttributionParams `json:"params"`
	LastUpdated time.Time                `json:"last_updated"`
	ExpiresAt   time.Time                `json:"expires_at"`
}

// AttributionRecordFromDomain converts a domain record to response.
func AttributionRecordFromDomain(r *domain.AttributionRecord) *AttributionRecordResponse {
	return &AttributionRecordResponse{
		IP:          r.IP,
		Params:      r.Params,
		LastUpdated: r.LastUpdated,
		ExpiresAt:   r.ExpiresAt,
	}
}

// UserResponse represents a user account in API responses.
type UserResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone,omitempty"`
	Document  string          `json:"document,omitempty"`
	Role      string          `json:"role"`
	Status    string          `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserFromDomain converts a domain user to response.
func UserFromDomain(u *domain.UserAccount) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Document:  u.Document,
		Role:      string(u.Role),
		Status:    string(u.Status),
		Balance:   u.Balance,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuditLogResponse is one audited operator action.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	IPAddress    string         `json:"ip_address,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Before       map[string]any `json:"before,omitempty"`
	After        map[string]any `json:"after,omitempty"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogsFromDomain converts audit logs to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	out := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		out[i] = &AuditLogResponse{
			ID:           l.ID,
			Actor:        l.UserID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			IPAddress:    l.IPAddress,
			RequestID:    l.RequestID,
			Before:       l.BeforeState,
			After:        l.AfterState,
			Status:       l.Status,
			CreatedAt:    l.CreatedAt,
		}
	}
	return out
}

// EventResponse is an outbox event emitted for an entry.
type EventResponse struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// EntryHistoryResponse bundles an entry with its audit trail and events.
type EntryHistoryResponse struct {
	Entry  *EntryResponse      `json:"entry"`
	Audit  []*AuditLogResponse `json:"audit"`
	Events []*EventResponse    `json:"events"`
}

// EntryHistoryFromUseCase converts a use case history to response.
func EntryHistoryFromUseCase(h *usecase.EntryHistory) *EntryHistoryResponse {
	events := make([]*EventResponse, len(h.Events))
	for i, e := range h.Events {
		events[i] = &EventResponse{
			ID:          e.ID,
			Type:        e.EventType,
			Payload:     e.Payload,
			CreatedAt:   e.CreatedAt,
			PublishedAt: e.PublishedAt,
		}
	}
	return &EntryHistoryResponse{
		Entry:  EntryFromDomain(h.Entry),
		Audit:  AuditLogsFromDomain(h.Audit),
		Events: events,
	}
}
