package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher writes document envelopes to the ingest topic.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Publisher{writer: w}
}

// Publish sends a single envelope payload to the ingest topic.
func (p *Publisher) Publish(ctx context.Context, key, value []byte) error {
	msg := kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close the writer on shutdown.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
