package eventpublisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
	"github.com/iho/betledger/internal/usecase"
)

// EventPublisher relays outbox events written alongside ledger changes.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	batchSize  int
	interval   time.Duration
	retention  time.Duration
	now        func() time.Time
}

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
	BatchSize  int           // Number of events to fetch per batch
	Interval   time.Duration // Polling interval
	Retention  time.Duration // Published events older than this are purged; zero keeps them
	Clock      usecase.Clock
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock.Now
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "outbox").Logger(),
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
		now:        now,
	}
}

// Start runs the relay until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().
		Int("batch_size", ep.batchSize).
		Dur("interval", ep.interval).
		Dur("retention", ep.retention).
		Msg("event publisher started")

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	ep.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Msg("event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			ep.tick(ctx)
		}
	}
}

func (ep *EventPublisher) tick(ctx context.Context) {
	// Keep draining while batches come back full so a backlog built up
	// during a broker outage clears without waiting for further ticks.
	for ctx.Err() == nil {
		full, err := ep.processEvents(ctx)
		if err != nil {
			ep.logger.Error().Err(err).Msg("error processing events")
			break
		}
		if !full {
			break
		}
	}
	if err := ep.purge(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("error purging published events")
	}
}

// processEvents publishes one batch in creation order. Once an event of an
// entry fails, later events of that entry wait for the next tick so
// consumers never see entry.completed before entry.created. It reports
// whether the batch was full and fully delivered.
func (ep *EventPublisher) processEvents(ctx context.Context) (bool, error) {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	ep.logger.Debug().Int("count", len(events)).Msg("processing events")

	blocked := make(map[string]struct{})
	for _, event := range events {
		key := event.AggregateType + "/" + event.AggregateID
		if _, ok := blocked[key]; ok {
			ep.observe(event, "deferred")
			continue
		}

		if err := ep.publisher.Publish(ctx, event); err != nil {
			blocked[key] = struct{}{}
			ep.observe(event, "failure")
			ep.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Str("aggregate_id", event.AggregateID).
				Msg("failed to publish event")
			continue
		}
		ep.observe(event, "success")

		// A failed mark means the event goes out again next tick.
		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, ep.now()); err != nil {
			blocked[key] = struct{}{}
			ep.logger.Error().Err(err).
				Str("event_id", event.ID).
				Msg("failed to mark event as published")
		}
	}

	return len(events) == ep.batchSize && len(blocked) == 0, nil
}

func (ep *EventPublisher) purge(ctx context.Context) error {
	if ep.retention <= 0 {
		return nil
	}
	return ep.outboxRepo.DeletePublished(ctx, ep.now().Add(-ep.retention))
}

func (ep *EventPublisher) observe(event *domain.OutboxEvent, outcome string) {
	if ep.metrics == nil {
		return
	}
	ep.metrics.OutboxPublished.WithLabelValues(event.EventType, outcome).Inc()
}
