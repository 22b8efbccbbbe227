package main

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/crosschain-composer/internal/alert"
	appmetrics "github.com/omnivault/crosschain-composer/internal/metrics"
)

type fakeDBStatsProvider struct {
	stats sql.DBStats
}

func (f fakeDBStatsProvider) Stats() sql.DBStats {
	return f.stats
}

type panicDBStatsProvider struct{}

func (panicDBStatsProvider) Stats() sql.DBStats {
	panic("db stats temporarily unavailable")
}

type flakyDBStatsProvider struct {
	failUntil int
	stats     sql.DBStats
	calls     int
	callCh    chan int
}

func (f *flakyDBStatsProvider) Stats() sql.DBStats {
	f.calls++
	if f.callCh != nil {
		f.callCh <- f.calls
	}
	if f.calls <= f.failUntil {
		panic("db stats temporarily unavailable")
	}
	return f.stats
}

// channelAlerter sends alerts to a channel for test verification.
type channelAlerter struct {
	ch chan<- alert.Alert
}

func (c *channelAlerter) Send(_ context.Context, a alert.Alert) error {
	c.ch <- a
	return nil
}

func TestCollectDBPoolStats_RecordsPoolMetrics(t *testing.T) {
	provider := fakeDBStatsProvider{
		stats: sql.DBStats{
			OpenConnections: 10,
			InUse:           3,
			Idle:            7,
			WaitCount:       13,
			WaitDuration:    1500 * time.Millisecond,
		},
	}

	stats, err := collectDBPoolStats(provider, "pool-collect-test")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.InUse)

	assert.Equal(t, 10.0, readGaugeValue(t, appmetrics.DBPoolOpen, "pool-collect-test"))
	assert.Equal(t, 3.0, readGaugeValue(t, appmetrics.DBPoolInUse, "pool-collect-test"))
	assert.Equal(t, 7.0, readGaugeValue(t, appmetrics.DBPoolIdle, "pool-collect-test"))
	assert.Equal(t, 13.0, readGaugeValue(t, appmetrics.DBPoolWaitCount, "pool-collect-test"))
	assert.Equal(t, 1.5, readGaugeValue(t, appmetrics.DBPoolWaitDurationSeconds, "pool-collect-test"))
}

func TestCollectDBPoolStats_ReturnsErrorOnPanic(t *testing.T) {
	_, err := collectDBPoolStats(panicDBStatsProvider{}, "pool-panic-test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db pool stats")
}

func TestStartDBPoolStatsPump_ToleratesTransientStatsFailure(t *testing.T) {
	callCh := make(chan int, 16)
	provider := &flakyDBStatsProvider{
		failUntil: 1,
		stats: sql.DBStats{
			OpenConnections: 10,
			InUse:           3,
			Idle:            7,
		},
		callCh: callCh,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startDBPoolStatsPump(ctx, provider, &alert.NoopAlerter{}, 5, slog.Default())

	// Call 1 panics; call 2 collects. By call 3 the second collection's
	// gauge writes are visible to this goroutine.
	timeout := time.After(time.Second)
	for {
		select {
		case count := <-callCh:
			if count >= 3 {
				assert.Equal(t, 10.0, readGaugeValue(t, appmetrics.DBPoolOpen, dbPoolLabel))
				cancel()
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for stats collection recovery")
		}
	}
}

func TestStartDBPoolStatsPump_NoopWithoutProviderOrInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Neither call may start a goroutine that touches the nil provider.
	startDBPoolStatsPump(ctx, nil, &alert.NoopAlerter{}, 5, slog.Default())
	startDBPoolStatsPump(ctx, fakeDBStatsProvider{}, &alert.NoopAlerter{}, 0, slog.Default())
	time.Sleep(20 * time.Millisecond)
}

func TestCheckDBPoolPressure_AlertsAbove80Pct(t *testing.T) {
	alertCh := make(chan alert.Alert, 1)
	stats := sql.DBStats{MaxOpenConnections: 10, InUse: 9, WaitCount: 4}

	sent := checkDBPoolPressure(context.Background(), stats, "composer", &channelAlerter{ch: alertCh})
	require.True(t, sent)

	select {
	case a := <-alertCh:
		assert.Equal(t, alert.AlertTypeDBPool, a.Type)
		assert.Equal(t, "composer", a.Chain)
		assert.Contains(t, a.Message, "9 of 10")
		assert.Equal(t, "9", a.Fields["in_use"])
		assert.Equal(t, "10", a.Fields["max_open"])
		assert.Equal(t, "4", a.Fields["wait_count"])
	case <-time.After(time.Second):
		t.Fatal("expected alert to be sent")
	}
}

func TestCheckDBPoolPressure_NoAlertBelow80Pct(t *testing.T) {
	alertCh := make(chan alert.Alert, 1)
	stats := sql.DBStats{MaxOpenConnections: 10, InUse: 5}

	sent := checkDBPoolPressure(context.Background(), stats, "composer", &channelAlerter{ch: alertCh})
	assert.False(t, sent)
	assert.Empty(t, alertCh)
}

func TestCheckDBPoolPressure_SkipsUnlimitedPool(t *testing.T) {
	alertCh := make(chan alert.Alert, 1)
	stats := sql.DBStats{MaxOpenConnections: 0, InUse: 100}

	sent := checkDBPoolPressure(context.Background(), stats, "composer", &channelAlerter{ch: alertCh})
	assert.False(t, sent)
	assert.Empty(t, alertCh)
}

func readGaugeValue(t *testing.T, gauge *prometheus.GaugeVec, database string) float64 {
	t.Helper()
	metricCh := make(chan prometheus.Metric, 1)
	gauge.WithLabelValues(database).Collect(metricCh)

	metric := <-metricCh
	dtoMetric := &dto.Metric{}
	require.NoError(t, metric.Write(dtoMetric))

	return dtoMetric.GetGauge().GetValue()
}
