package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/iho/betledger/internal/domain"
)

// Envelope is the wire shape of an outbox event on the broker.
type Envelope struct {
	ID            string         `json:"id"`
	EventType     string         `json:"event_type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload"`
}

// KafkaConfig configures the broker connection.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// KafkaPublisher publishes outbox events to a single topic keyed by
// aggregate id, so events for one entry or user stay ordered.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher dials the brokers with an idempotent producer.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 5
	sc.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka: new producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends one event and waits for the broker ack.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(Envelope{
		ID:            event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		OccurredAt:    event.CreatedAt.UTC(),
		Payload:       event.Payload,
	})
	if err != nil {
		return fmt.Errorf("kafka: marshal event %s: %w", event.ID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
			{Key: []byte("event_id"), Value: []byte(event.ID)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka: send event %s: %w", event.ID, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
