package memory

import (
	"context"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	store *Store
}

// Create appends an audit log outside any transaction.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.CreateTx(ctx, nil, log)
}

// CreateTx appends an audit log; it disappears again if tx rolls back.
func (r *AuditRepository) CreateTx(_ context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	cp := *log
	r.store.mu.Lock()
	r.store.audit = append(r.store.audit, &cp)
	r.store.mu.Unlock()

	if t := asTx(tx); t != nil {
		t.onRollback(func() {
			for i, l := range r.store.audit {
				if l == &cp {
					r.store.audit = append(r.store.audit[:i], r.store.audit[i+1:]...)
					return
				}
			}
		})
	}
	return nil
}

// List returns audit logs matching filter, newest first.
func (r *AuditRepository) List(_ context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*domain.AuditLog
	skipped := 0
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		l := r.store.audit[i]
		if !auditMatches(l, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		cp := *l
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// GetByResourceID returns all logs about one resource.
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	return r.List(ctx, domain.AuditFilter{ResourceType: resourceType, ResourceID: resourceID})
}

func auditMatches(l *domain.AuditLog, f domain.AuditFilter) bool {
	switch {
	case f.UserID != "" && l.UserID != f.UserID:
		return false
	case f.Action != "" && l.Action != f.Action:
		return false
	case f.ResourceType != "" && l.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && l.ResourceID != f.ResourceID:
		return false
	case f.StartDate != nil && l.CreatedAt.Before(*f.StartDate):
		return false
	case f.EndDate != nil && l.CreatedAt.After(*f.EndDate):
		return false
	}
	return true
}
