package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// keyed events pin every message of one order to one partition.
type keyed interface {
	PartitionKey() string
}

// Publisher writes order events to a single topic through one long-lived
// writer.
type Publisher struct {
	writer messageWriter
	topic  string
}

var _ infra.EventPublisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka publisher ready")
	return &Publisher{writer: w, topic: topic}
}

func buildMessage(eventType string, data any) (kafkago.Message, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("kafka: marshal %s: %w", eventType, err)
	}

	msg := kafkago.Message{
		Value: body,
		Time:  time.Now().UTC(),
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "message-id", Value: []byte(uuid.NewString())},
		},
	}
	if k, ok := data.(keyed); ok {
		msg.Key = []byte(k.PartitionKey())
	}
	return msg, nil
}

func (p *Publisher) Publish(ctx context.Context, eventType string, data any) error {
	msg, err := buildMessage(eventType, data)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s to %s: %w", eventType, p.topic, err)
	}
	log.Debug().Str("topic", p.topic).Str("event", eventType).Str("key", string(msg.Key)).Msg("event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
