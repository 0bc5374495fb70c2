package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AuditLog records who changed money or an account outside the normal
// gateway flow, with the state before and after the change.
type AuditLog struct {
	ID           string
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a decoded JSON object.
type JSON map[string]any

// AuditAction names an audited operation.
type AuditAction string

const (
	AuditActionEntryConfirm   AuditAction = "entry.confirm"
	AuditActionEntryCancel    AuditAction = "entry.cancel"
	AuditActionEntryFail      AuditAction = "entry.fail"
	AuditActionBalanceAdjust  AuditAction = "balance.adjust"
	AuditActionWithdrawalOpen AuditAction = "withdrawal.request"
)

// AuditStatus is the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// RequestMeta identifies the HTTP request behind an operation.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

// ContextWithRequestMeta returns a copy of ctx carrying m.
func ContextWithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// RequestMetaFromContext returns the request metadata in ctx, if any.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}

// NewAuditLog starts a successful audit record attributed to the caller in
// ctx. Background jobs are attributed to "system".
func NewAuditLog(ctx context.Context, id string, action AuditAction, resourceType, resourceID string, at time.Time) *AuditLog {
	meta := RequestMetaFromContext(ctx)
	return &AuditLog{
		ID:           id,
		UserID:       ActorID(ctx),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		Status:       string(AuditStatusSuccess),
		CreatedAt:    at,
	}
}

// WithStates attaches before and after snapshots.
func (l *AuditLog) WithStates(before, after any) *AuditLog {
	l.BeforeState = MarshalState(before)
	l.AfterState = MarshalState(after)
	return l
}

// MarshalState flattens v into a JSON object. Values that do not encode
// as an object are stored under "value".
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": err.Error()}
	}

	var obj JSON
	if err := json.Unmarshal(data, &obj); err != nil {
		var raw any
		_ = json.Unmarshal(data, &raw)
		return JSON{"value": raw}
	}
	return obj
}

// AuditFilter selects audit logs. Zero fields match everything.
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
