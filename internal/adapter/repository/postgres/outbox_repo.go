package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/postgres/generated"
	"github.com/iho/betledger/internal/usecase"
)

// OutboxRepository stores settlement events next to the ledger rows that
// produced them, so an event exists if and only if its transaction committed.
type OutboxRepository struct {
	queries *generated.Queries
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return newOutboxRepository(pool)
}

func newOutboxRepository(db generated.DBTX) *OutboxRepository {
	return &OutboxRepository{queries: generated.New(db)}
}

// Create appends event inside tx.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	payload, err := marshalObject(event.Payload)
	if err != nil {
		return fmt.Errorf("outbox event %s: %w", event.ID, err)
	}

	err = queries.CreateOutboxEvent(ctx, generated.CreateOutboxEventParams{
		ID:            event.ID,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Payload:       payload,
		CreatedAt:     timeToPgTimestamptz(event.CreatedAt),
		Published:     event.Published,
	})
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", event.EventType, err)
	}
	return nil
}

// GetUnpublished returns the oldest pending events.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.queries.GetUnpublishedEvents(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	return toOutboxEvents(rows)
}

// MarkPublished records a successful hand-off to the broker.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	return r.queries.MarkEventPublished(ctx, generated.MarkEventPublishedParams{
		ID:          id,
		PublishedAt: timeToPgTimestamptz(publishedAt),
	})
}

// GetByAggregate lists the events emitted for one entry or user.
func (r *OutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	rows, err := r.queries.GetEventsByAggregate(ctx, generated.GetEventsByAggregateParams{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Limit:         int32(limit),
		Offset:        int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list events for %s %s: %w", aggregateType, aggregateID, err)
	}
	return toOutboxEvents(rows)
}

// DeletePublished prunes events delivered before the cutoff.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return r.queries.DeletePublishedEvents(ctx, timeToPgTimestamptz(before))
}

func toOutboxEvents(rows []generated.OutboxEvent) ([]*domain.OutboxEvent, error) {
	events := make([]*domain.OutboxEvent, len(rows))
	for i, row := range rows {
		e, err := rowToOutboxEvent(row)
		if err != nil {
			return nil, err
		}
		events[i] = e
	}
	return events, nil
}

func rowToOutboxEvent(row generated.OutboxEvent) (*domain.OutboxEvent, error) {
	e := &domain.OutboxEvent{
		ID:            row.ID,
		AggregateID:   row.AggregateID,
		AggregateType: row.AggregateType,
		EventType:     row.EventType,
		CreatedAt:     row.CreatedAt.Time,
		Published:     row.Published,
	}
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of event %s: %w", row.ID, err)
		}
	}
	if row.PublishedAt.Valid {
		t := row.PublishedAt.Time
		e.PublishedAt = &t
	}
	return e, nil
}
