package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	es "github.com/opsworks-ru/go-es-facade/internal/elasticsearch"
	"github.com/opsworks-ru/go-es-facade/internal/store"
)

// fakeSource replays a fixed message list, then blocks like a reader with
// nothing left to deliver.
type fakeSource struct {
	msgs      []kafka.Message
	fetched   int
	committed []int64
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.fetched >= len(f.msgs) {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[f.fetched]
	f.fetched++
	return m, nil
}

func (f *fakeSource) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeSource) Close() error { return nil }

// flakySink fails the first `failures` writes, then acknowledges.
type flakySink struct {
	failures int
	attempts int
	indexed  []map[string]any
}

func (s *flakySink) write(index string, body map[string]any) (*es.IndexAck, error) {
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("cluster unavailable")
	}
	s.indexed = append(s.indexed, body)
	return &es.IndexAck{Index: index, ID: "x", Version: 1, Result: "created"}, nil
}

func (s *flakySink) Store(_ context.Context, index string, body map[string]any) (*es.IndexAck, error) {
	return s.write(index, body)
}

func (s *flakySink) Put(_ context.Context, body map[string]any) (*es.IndexAck, error) {
	return s.write("data", body)
}

func newTestConsumer(t *testing.T, src *fakeSource, sink *flakySink) *Consumer {
	t.Helper()
	cp, err := store.Open(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })
	return &Consumer{reader: src, sink: sink, cp: cp, log: zap.NewNop(), retry: time.Millisecond}
}

func runUntilDrained(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunRetriesIndexingInPlace(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		{Offset: 10, Value: []byte(`{"doc":{"id":1}}`)},
		{Offset: 11, Value: []byte(`{"doc":{"id":2}}`)},
	}}
	sink := &flakySink{failures: 3}
	c := newTestConsumer(t, src, sink)

	runUntilDrained(t, c)

	// the first document is retried until the cluster takes it; nothing
	// is committed past an unindexed message and nothing is dropped
	assert.Equal(t, 5, sink.attempts)
	require.Len(t, sink.indexed, 2)
	assert.Equal(t, float64(1), sink.indexed[0]["id"])
	assert.Equal(t, float64(2), sink.indexed[1]["id"])
	assert.Equal(t, []int64{10, 11}, src.committed)

	off, err := c.cp.Offset()
	require.NoError(t, err)
	assert.Equal(t, int64(11), off)
}

func TestRunCommitsMalformedMessages(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		{Offset: 5, Value: []byte(`not json`)},
		{Offset: 6, Value: []byte(`{"index":"events","doc":{"id":3}}`)},
	}}
	sink := &flakySink{}
	c := newTestConsumer(t, src, sink)

	runUntilDrained(t, c)

	assert.Equal(t, []int64{5, 6}, src.committed)
	require.Len(t, sink.indexed, 1)
	assert.Equal(t, float64(3), sink.indexed[0]["id"])
}

func TestRunStopsRetryingOnCancel(t *testing.T) {
	src := &fakeSource{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"doc":{"id":1}}`)},
	}}
	sink := &flakySink{failures: 1 << 30} // never succeeds
	c := newTestConsumer(t, src, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Empty(t, src.committed, "an unindexed message must stay uncommitted")
}

func TestDecode(t *testing.T) {
	ev, err := Decode([]byte(`{"index":"events","doc":{"id":1000}}`))
	require.NoError(t, err)
	assert.Equal(t, "events", ev.Index)
	assert.Equal(t, float64(1000), ev.Doc["id"])
}

func TestDecodeDefaultIndex(t *testing.T) {
	ev, err := Decode([]byte(`{"doc":{"id":7}}`))
	require.NoError(t, err)
	assert.Empty(t, ev.Index, "missing index means the consumer's default index")
}

func TestDecodeRejectsMissingDocument(t *testing.T) {
	_, err := Decode([]byte(`{"index":"events"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no document")
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := Envelope{Index: "events", Doc: map[string]any{"id": float64(1)}}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
