package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	es "github.com/opsworks-ru/go-es-facade/internal/elasticsearch"
	"github.com/opsworks-ru/go-es-facade/internal/store"
)

// retryDelay paces both fetch failures and indexing retries.
const retryDelay = 1 * time.Second

// Envelope is the message format on the ingest topic. When Index is empty
// the document goes to the facade's default index.
type Envelope struct {
	Index string         `json:"index,omitempty"`
	Doc   map[string]any `json:"doc"`
}

// DocumentStore is the slice of the Elasticsearch facade the consumer
// writes through.
type DocumentStore interface {
	Store(ctx context.Context, index string, body map[string]any) (*es.IndexAck, error)
	Put(ctx context.Context, body map[string]any) (*es.IndexAck, error)
}

var _ DocumentStore = (*es.ES)(nil)

// messageSource is the slice of the Kafka reader the consumer uses.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ messageSource = (*kafka.Reader)(nil)

// Consumer moves document envelopes from the ingest topic into
// Elasticsearch, recording committed offsets in the checkpoint store.
type Consumer struct {
	reader messageSource
	sink   DocumentStore
	cp     *store.Store
	log    *zap.Logger
	retry  time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, sink DocumentStore, cp *store.Store, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	return &Consumer{reader: r, sink: sink, cp: cp, log: log, retry: retryDelay}
}

// Run fetches messages until ctx is cancelled. Malformed messages are
// committed and skipped. Indexing failures are retried in place, paced by
// the retry delay: the reader never advances past an unindexed document, so
// commits only ever cover documents the cluster acknowledged.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("fetch message", zap.Error(err))
			if err := c.pause(ctx); err != nil {
				return err
			}
			continue
		}

		ev, err := Decode(m.Value)
		if err != nil {
			c.log.Warn("skip malformed message", zap.Int64("offset", m.Offset), zap.Error(err))
			c.commit(ctx, m)
			continue
		}

		ack, err := c.index(ctx, ev)
		for err != nil {
			c.log.Error("index document, retrying", zap.Int64("offset", m.Offset), zap.Error(err))
			if err := c.pause(ctx); err != nil {
				return err
			}
			ack, err = c.index(ctx, ev)
		}

		c.log.Info("indexed document",
			zap.String("id", ack.ID),
			zap.String("index", ack.Index),
			zap.Int64("offset", m.Offset))
		c.commit(ctx, m)
	}
}

func (c *Consumer) index(ctx context.Context, ev Envelope) (*es.IndexAck, error) {
	if ev.Index == "" {
		return c.sink.Put(ctx, ev.Doc)
	}
	return c.sink.Store(ctx, ev.Index, ev.Doc)
}

func (c *Consumer) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.retry):
		return nil
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.log.Warn("commit offset", zap.Error(err))
		return
	}
	if err := c.cp.SaveOffset(m.Offset); err != nil {
		c.log.Warn("save checkpoint", zap.Error(err))
	}
}

// Close the reader on shutdown.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Decode parses a document envelope from a raw message payload.
func Decode(raw []byte) (Envelope, error) {
	var ev Envelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if ev.Doc == nil {
		return Envelope{}, fmt.Errorf("envelope has no document")
	}
	return ev, nil
}
