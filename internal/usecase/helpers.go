package usecase

import (
	"context"
	"time"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
)

// emitEntryEvent writes an entry.* event into the outbox inside tx.
func emitEntryEvent(ctx context.Context, tx Transaction, outbox OutboxRepository, idGen IDGenerator, entry *domain.LedgerEntry, eventType string, at time.Time) error {
	if outbox == nil {
		return nil
	}
	event := &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   entry.ID,
		AggregateType: domain.AggregateTypeEntry,
		EventType:     eventType,
		Payload:       domain.NewEntryEvent(entry, at).ToMap(),
		CreatedAt:     at,
		Published:     false,
	}
	return outbox.Create(ctx, tx, event)
}

// writeAudit records an operator action inside tx.
func writeAudit(ctx context.Context, tx Transaction, audit AuditRepository, idGen IDGenerator, action domain.AuditAction, resourceType, resourceID string, before, after any, at time.Time) error {
	if audit == nil {
		return nil
	}
	log := domain.NewAuditLog(ctx, idGen.Generate(), action, resourceType, resourceID, at).
		WithStates(before, after)
	return audit.CreateTx(ctx, tx, log)
}

// countAudit records a committed audit log.
func countAudit(m *metrics.Metrics, action domain.AuditAction) {
	if m == nil || action == "" {
		return
	}
	m.AuditLogsCreated.WithLabelValues(string(action), string(domain.AuditStatusSuccess)).Inc()
}

func withRetry(ctx context.Context, r Retrier, fn func() error) error {
	if r == nil {
		return fn()
	}
	return r.Retry(ctx, fn)
}

func snapshot(e *domain.LedgerEntry) *domain.LedgerEntry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Metadata = e.Metadata.Merge(nil)
	return &cp
}
