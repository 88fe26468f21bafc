//go:build integration

package outbox

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/stepcount/internal/events"
	"example.com/stepcount/internal/persistence/postgres"
	"example.com/stepcount/internal/testsupport"
)

func TestDispatcherPublishesRecordedStepCounts(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	repo := postgres.NewRepository(pool, "step_counts")
	require.NoError(t, repo.Migrate(ctx))
	rec, err := repo.Create(ctx, 142, time.Now().UTC())
	require.NoError(t, err)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(recordedPublished)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, "step_counts", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	var event events.StepCountRecorded
	require.NoError(t, json.Unmarshal(producer.writes[0].messages[0].Value, &event))
	require.Equal(t, rec.ID, event.ID)
	require.Equal(t, 142, event.Count)
	require.Equal(t, strconv.FormatInt(rec.ID, 10), string(producer.writes[0].messages[0].Key))

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(recordedPublished), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	// A second pass finds nothing left to deliver.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	repo := postgres.NewRepository(pool, "step_counts")
	require.NoError(t, repo.Migrate(ctx))
	_, err := repo.Create(ctx, 7, time.Now().UTC())
	require.NoError(t, err)

	dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("kafka write failed")}, 10*time.Millisecond, 5)

	beforeDLQ := testutil.ToFloat64(recordedDeadLettered.WithLabelValues("step_counts"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(recordedDeadLettered.WithLabelValues("step_counts")), 0.0001)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq`).Scan(&reason))
	require.Contains(t, reason, "kafka write failed")
	require.Contains(t, reason, "topic=step_counts")

	var unpublished int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&unpublished))
	require.Zero(t, unpublished)
}

func TestDispatcherServeStopsOnCancel(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	require.NoError(t, postgres.NewRepository(pool, "step_counts").Migrate(ctx))

	dispatcher := NewDispatcher(pool, &stubProducer{}, 10*time.Millisecond, 5)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- dispatcher.Serve(runCtx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
