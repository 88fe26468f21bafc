package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/stepcount/internal/domain"
)

func recordedMessage(offset int64, payload string) kafka.Message {
	return kafka.Message{
		Topic:     "step_counts",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("7"),
		Time:      time.Now().UTC(),
		Value:     []byte(payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("stepcount.recorded")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := `{"id":7,"count":142,"received_at":"2026-10-19T10:00:00Z"}`
	reader := &stubReader{messages: []kafka.Message{recordedMessage(10, payload)}}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(zerolog.New(zerolog.NewTestWriter(t))))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "stepcount.recorded", handler.last.EventType)
	require.Equal(t, "7", handler.last.Key)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{messages: []kafka.Message{recordedMessage(20, `{"id":8,"count":5}`)}}
	handler := &stubHandler{err: errors.New("boom")}
	before := testutil.ToFloat64(mirrorFailures.WithLabelValues("stepcount.recorded"))

	processor := NewProcessor(reader, handler, WithLogger(zerolog.New(zerolog.NewTestWriter(t))))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(mirrorFailures.WithLabelValues("stepcount.recorded")), 0.0001)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noHeader := recordedMessage(30, `{"id":1,"count":1}`)
	noHeader.Headers = nil
	reader := &stubReader{messages: []kafka.Message{noHeader, recordedMessage(31, `not json`)}}
	handler := &stubHandler{}
	before := testutil.ToFloat64(malformedRecords.WithLabelValues("step_counts"))

	processor := NewProcessor(reader, handler, WithLogger(zerolog.New(zerolog.NewTestWriter(t))))

	require.ErrorIs(t, processor.Run(ctx), context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
	require.InDelta(t, before+2, testutil.ToFloat64(malformedRecords.WithLabelValues("step_counts")), 0.0001)
}

func TestServeClosesReader(t *testing.T) {
	reader := &stubReader{}
	processor := NewProcessor(reader, &stubHandler{}, WithLogger(zerolog.Nop()))

	require.ErrorIs(t, processor.Serve(context.Background()), context.Canceled)
	require.True(t, reader.closed)
	require.Equal(t, "kafka-consumer", processor.String())
}

func TestMirrorHandlerPublishesRecordedCounts(t *testing.T) {
	pub := &stubPublisher{}
	h := NewMirrorHandler(pub)

	err := h.Handle(context.Background(), Message{
		EventType: "stepcount.recorded",
		Payload:   []byte(`{"id":7,"count":142,"received_at":"2026-10-19T10:00:00Z"}`),
	})
	require.NoError(t, err)
	require.Equal(t, []domain.StepCount{{ID: 7, Count: 142}}, pub.published)
}

func TestMirrorHandlerIgnoresOtherEvents(t *testing.T) {
	pub := &stubPublisher{}
	h := NewMirrorHandler(pub)

	require.NoError(t, h.Handle(context.Background(), Message{EventType: "something.else", Payload: []byte(`{}`)}))
	require.Empty(t, pub.published)
}

func TestMirrorHandlerReportsBadPayload(t *testing.T) {
	h := NewMirrorHandler(&stubPublisher{})

	err := h.Handle(context.Background(), Message{EventType: "stepcount.recorded", Payload: []byte(`{"count":"many"}`)})
	require.Error(t, err)
}

func TestMirrorHandlerPropagatesPublishError(t *testing.T) {
	boom := errors.New("firebase unavailable")
	h := NewMirrorHandler(&stubPublisher{err: boom})

	err := h.Handle(context.Background(), Message{EventType: "stepcount.recorded", Payload: []byte(`{"id":1,"count":1}`)})
	require.ErrorIs(t, err, boom)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	closed      bool
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	published []domain.StepCount
}

func (p *stubPublisher) Publish(_ context.Context, sc domain.StepCount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, sc)
	return nil
}
