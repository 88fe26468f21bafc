package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordPublishSplitsOutcomes(t *testing.T) {
	success := publishCounter.WithLabelValues("test-target", OutcomeSuccess)
	failure := publishCounter.WithLabelValues("test-target", OutcomeFailure)
	beforeOK := testutil.ToFloat64(success)
	beforeFail := testutil.ToFloat64(failure)

	RecordPublish("test-target", 10*time.Millisecond, nil)
	RecordPublish("test-target", 10*time.Millisecond, errors.New("boom"))
	RecordPublish("test-target", 10*time.Millisecond, errors.New("boom"))

	require.Equal(t, beforeOK+1, testutil.ToFloat64(success))
	require.Equal(t, beforeFail+2, testutil.ToFloat64(failure))
}

func TestRecordEventSyncedIgnoresZeroTime(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	RecordEventSynced(ts)
	RecordEventSynced(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(lastSyncedGauge))
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(7)
	require.Equal(t, 7.0, testutil.ToFloat64(queueDepthGauge))
	SetQueueDepth(0)
	require.Equal(t, 0.0, testutil.ToFloat64(queueDepthGauge))
}
