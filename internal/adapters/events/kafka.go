package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/revenue-ledger/internal/contracts"
)

// KafkaPublisher writes envelopes to the platform bus. Domain events go to
// per-type topics (or a mapped override), analytics events to a single
// firehose topic, poison events to the DLQ topic.
type KafkaPublisher struct {
	writer         *kafka.Writer
	analyticsTopic string
	dlqTopic       string
	topicByEvent   map[string]string
}

func NewKafkaPublisher(brokers []string, analyticsTopic, dlqTopic string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if analyticsTopic == "" {
		analyticsTopic = "analytics.revenue"
	}
	if dlqTopic == "" {
		dlqTopic = "revenue-ledger.dlq"
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		analyticsTopic: analyticsTopic,
		dlqTopic:       dlqTopic,
		topicByEvent:   topicByEvent,
	}, nil
}

func (p *KafkaPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	topic := event.EventType
	if mapped, ok := p.topicByEvent[event.EventType]; ok && mapped != "" {
		topic = mapped
	}
	return p.write(ctx, topic, event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	return p.write(ctx, p.analyticsTopic, event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	return p.write(ctx, p.dlqTopic, record.OriginalEvent.PartitionKey, record)
}

func (p *KafkaPublisher) write(ctx context.Context, topic, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: raw,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads domain event envelopes back off the bus for the
// worker's consume loop.
type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	if groupID == "" {
		groupID = "revenue-ledger-worker"
	}
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     groupID,
			GroupTopics: topics,
			MinBytes:    1,
			MaxBytes:    10 << 20,
		}),
	}, nil
}

func (c *KafkaConsumer) Receive(ctx context.Context) (*contracts.EventEnvelope, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	var envelope contracts.EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope from %s: %w", msg.Topic, err)
	}
	return &envelope, nil
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
