package domain

import "time"

// Event types
const (
	EventTypeEntryCreated    = "entry.created"
	EventTypeEntryCompleted  = "entry.completed"
	EventTypeEntryFailed     = "entry.failed"
	EventTypeEntryCancelled  = "entry.cancelled"
	EventTypeBalanceAdjusted = "balance.adjusted"
)

// Aggregate types
const (
	AggregateTypeEntry = "ledger_entry"
	AggregateTypeUser  = "user"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryEvent is the payload for every entry.* event.
type EntryEvent struct {
	EntryID           string `json:"entry_id"`
	UserID            string `json:"user_id"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	PaymentMethod     string `json:"payment_method,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`
	EventAt           string `json:"event_at"`
}

// NewEntryEvent builds the payload for an entry.* event.
func NewEntryEvent(e *LedgerEntry, at time.Time) EntryEvent {
	return EntryEvent{
		EntryID:           e.ID,
		UserID:            e.UserID,
		Type:              string(e.Type),
		Status:            string(e.Status),
		Amount:            e.Amount.String(),
		PaymentMethod:     string(e.PaymentMethod),
		ExternalReference: e.ExternalReference,
		EventAt:           at.UTC().Format(time.RFC3339Nano),
	}
}

// ToMap flattens the payload for outbox storage.
func (e EntryEvent) ToMap() map[string]any {
	m := map[string]any{
		"entry_id": e.EntryID,
		"user_id":  e.UserID,
		"type":     e.Type,
		"status":   e.Status,
		"amount":   e.Amount,
		"event_at": e.EventAt,
	}
	if e.PaymentMethod != "" {
		m["payment_method"] = e.PaymentMethod
	}
	if e.ExternalReference != "" {
		m["external_reference"] = e.ExternalReference
	}
	return m
}

// EventTypeForStatus maps a terminal status to its event type.
func EventTypeForStatus(s EntryStatus) string {
	switch s {
	case EntryStatusCompleted:
		return EventTypeEntryCompleted
	case EntryStatusFailed:
		return EventTypeEntryFailed
	case EntryStatusCancelled:
		return EventTypeEntryCancelled
	}
	return EventTypeEntryCreated
}
