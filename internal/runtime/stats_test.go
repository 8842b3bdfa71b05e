package runtime

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/jsoncodec"
)

func TestPercentile(t *testing.T) {
	sorted := []int64{10, 20, 30, 40, 50}

	assert.Equal(t, int64(0), percentile(nil, 0.5))
	assert.Equal(t, int64(30), percentile(sorted, 0.50))
	assert.Equal(t, int64(48), percentile(sorted, 0.95))
	assert.Equal(t, int64(50), percentile(sorted, 1))
	assert.Equal(t, int64(7), percentile([]int64{7}, 0.99))
}

func TestLatencyWindowKeepsRecentSamples(t *testing.T) {
	lw := newLatencyWindow(4)
	assert.Equal(t, LatencyMetrics{}, lw.Snapshot())

	for i := 1; i <= 6; i++ {
		lw.Add(time.Duration(i * 100))
	}

	snap := lw.Snapshot()
	assert.Equal(t, 4, snap.SampleSize)
	assert.Equal(t, int64(600), snap.LastNs)
	assert.Equal(t, int64(450), snap.P50Ns)
	assert.LessOrEqual(t, snap.P99Ns, int64(600))
	assert.GreaterOrEqual(t, snap.P95Ns, snap.P50Ns)
}

func TestSubscriberStatsCountsOutcomes(t *testing.T) {
	stats := newSubscriberStats()
	at := time.Date(2017, 10, 27, 15, 46, 0, 0, time.FixedZone("EEST", 2*60*60))

	stats.onReceived(at)
	stats.onHandled(3, 2*time.Millisecond)
	stats.onReceived(at)
	stats.onFailed(errspkg.NewSchemaViolation("outageEvent[0].outageStatus", "unknown status token", nil))
	stats.onReceived(at)
	stats.onFailed(&errspkg.HandlerFailureError{Subscriber: "ops", Err: errors.New("store offline")})

	assert.Equal(t, uint64(3), stats.MessagesReceived)
	assert.Equal(t, uint64(1), stats.MessagesHandled)
	assert.Equal(t, uint64(3), stats.RecordsHandled)
	assert.Equal(t, time.UTC, stats.LastReceivedAt.Location())
	assert.Equal(t, uint64(1), stats.Errors.SchemaViolations)
	assert.Equal(t, uint64(1), stats.Errors.HandlerFailures)
	assert.Contains(t, stats.Errors.LastError, "store offline")

	data, err := jsoncodec.Marshal(stats)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, jsoncodec.Unmarshal(data, &decoded))
	assert.EqualValues(t, 3, decoded["messages_received"])
	assert.Contains(t, decoded, "latency")
	assert.NotContains(t, decoded, "latencyWindow")
}

func TestMetricsRecordFailureByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	m.RecordFailure("OutageEventChangedNotification", "ops", errspkg.NewSchemaViolation("outageEvent[0]", "bad", nil))
	m.RecordFailure("OutageEventChangedNotification", "ops", fmt.Errorf("wrapped: %w", &errspkg.HandlerFailureError{Err: errors.New("boom")}))
	m.RecordFailure("OutageEventChangedNotification", "ops", errors.New("unclassified"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.schemaViolations.WithLabelValues("OutageEventChangedNotification", "ops")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.handlerFailures.WithLabelValues("OutageEventChangedNotification", "ops")))
}

func TestMetricsRegisterToleratesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewMetrics(reg).Register())

	other := NewMetrics(reg)
	assert.NoError(t, other.Register())
}
