package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaConfig locates the Kafka topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher writes events to one topic, keyed by loan id so every
// event of a loan lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafkago.Writer
	topic  string
}

// NewKafkaPublisher creates the writer. Connections are opened lazily on
// the first write.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafkago.RequireAll,
		},
		topic: cfg.Topic,
	}
}

// Publish writes evt synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := kafkaMessage(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessage(evt Event) (kafkago.Message, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("marshal event %s: %w", evt.Type, err)
	}
	return kafkago.Message{
		Key:   []byte(evt.LoanID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
		Time: evt.OccurredAt,
	}, nil
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
