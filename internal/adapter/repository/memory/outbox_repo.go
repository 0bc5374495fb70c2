package memory

import (
	"context"
	"time"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// Create appends an event; it disappears again if tx rolls back.
func (r *OutboxRepository) Create(_ context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	cp := *event
	r.store.mu.Lock()
	r.store.outbox = append(r.store.outbox, &cp)
	r.store.mu.Unlock()

	if t := asTx(tx); t != nil {
		t.onRollback(func() {
			for i, e := range r.store.outbox {
				if e == &cp {
					r.store.outbox = append(r.store.outbox[:i], r.store.outbox[i+1:]...)
					return
				}
			}
		})
	}
	return nil
}

// GetUnpublished returns the oldest unpublished events.
func (r *OutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*domain.OutboxEvent
	for _, e := range r.store.outbox {
		if e.Published {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished flags an event as delivered.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.outbox {
		if e.ID == id {
			e.Published = true
			at := publishedAt
			e.PublishedAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

// GetByAggregate lists the events of one aggregate in creation order.
func (r *OutboxRepository) GetByAggregate(_ context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*domain.OutboxEvent
	skipped := 0
	for _, e := range r.store.outbox {
		if e.AggregateType != aggregateType || e.AggregateID != aggregateID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// DeletePublished drops events published before the cutoff.
func (r *OutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.outbox[:0]
	for _, e := range r.store.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	r.store.outbox = kept
	return nil
}
