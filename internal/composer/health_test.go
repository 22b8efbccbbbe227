package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_InitialState(t *testing.T) {
	h := NewHealth("hubchain", "hub")

	assert.Equal(t, HealthStatusUnknown, h.Status())

	snap := h.Snapshot()
	assert.Equal(t, "hubchain", snap.Chain)
	assert.Equal(t, "hub", snap.Role)
	assert.Equal(t, string(HealthStatusUnknown), snap.Status)
	assert.Zero(t, snap.ConsecutiveFailures)
	assert.Nil(t, snap.LastSuccessAt)
	assert.Nil(t, snap.LastFailureAt)
}

func TestHealth_FailuresBelowThresholdKeepStatus(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	h.unhealthyThreshold = 3

	assert.False(t, h.RecordFailure())
	assert.False(t, h.RecordFailure())
	assert.Equal(t, HealthStatusUnknown, h.Status())

	snap := h.Snapshot()
	assert.Equal(t, 2, snap.ConsecutiveFailures)
	require.NotNil(t, snap.LastFailureAt)
}

func TestHealth_UnhealthyTransitionFiresOnce(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	h.unhealthyThreshold = 3

	h.RecordFailure()
	h.RecordFailure()
	assert.True(t, h.RecordFailure(), "crossing the threshold reports the transition")
	assert.Equal(t, HealthStatusUnhealthy, h.Status())

	// Further failures deepen the count without re-reporting.
	assert.False(t, h.RecordFailure())
	assert.Equal(t, 4, h.Snapshot().ConsecutiveFailures)
}

func TestHealth_SuccessResetsFailureStreak(t *testing.T) {
	h := NewHealth("hubchain", "hub")

	h.RecordFailure()
	h.RecordFailure()
	h.RecordSuccess()

	assert.Equal(t, HealthStatusHealthy, h.Status())
	snap := h.Snapshot()
	assert.Zero(t, snap.ConsecutiveFailures)
	require.NotNil(t, snap.LastSuccessAt)
	require.NotNil(t, snap.LastFailureAt)
}

func TestHealth_RecoveryReportedOnce(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	h.unhealthyThreshold = 2

	h.RecordFailure()
	h.RecordFailure()
	require.Equal(t, HealthStatusUnhealthy, h.Status())

	assert.True(t, h.RecordSuccessWithRecovery(), "first success after unhealthy is a recovery")
	assert.Equal(t, HealthStatusHealthy, h.Status())
	assert.False(t, h.RecordSuccessWithRecovery(), "staying healthy is not a recovery")
}

func TestHealth_LatencyDegradation(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	h.degradedLatencyThreshold = 50 * time.Millisecond

	h.RecordSuccess()
	require.Equal(t, HealthStatusHealthy, h.Status())

	// One slow sample is not enough to judge.
	h.RecordLatency(100 * time.Millisecond)
	assert.Equal(t, HealthStatusHealthy, h.Status())

	h.RecordLatency(100 * time.Millisecond)
	assert.Equal(t, HealthStatusDegraded, h.Status())

	// Fast samples push the slow ones out of the window and recover.
	for i := 0; i < latencyWindowSize+2; i++ {
		h.RecordLatency(time.Millisecond)
	}
	assert.Equal(t, HealthStatusHealthy, h.Status())
}

func TestHealth_SuccessWhileLatencyDegradedStaysDegraded(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	h.degradedLatencyThreshold = 50 * time.Millisecond

	h.RecordSuccess()
	h.RecordLatency(200 * time.Millisecond)
	h.RecordLatency(200 * time.Millisecond)
	require.Equal(t, HealthStatusDegraded, h.Status())

	// Deliveries still succeed; the status reflects their latency.
	h.RecordSuccess()
	assert.Equal(t, HealthStatusDegraded, h.Status())
}

func TestHealth_LatencyIgnoredOutsideSteadyStates(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	h.degradedLatencyThreshold = time.Millisecond
	h.unhealthyThreshold = 1

	h.RecordFailure()
	require.Equal(t, HealthStatusUnhealthy, h.Status())

	h.RecordLatency(time.Second)
	h.RecordLatency(time.Second)
	assert.Equal(t, HealthStatusUnhealthy, h.Status(), "latency must not mask an unhealthy composer")
}

func TestHealth_SetStatus(t *testing.T) {
	h := NewHealth("spokechain", "spoke")

	h.SetStatus(HealthStatusInactive)
	assert.Equal(t, HealthStatusInactive, h.Status())
	assert.Equal(t, string(HealthStatusInactive), h.Snapshot().Status)
}

func TestStatusGauge(t *testing.T) {
	tests := []struct {
		status HealthStatus
		want   float64
	}{
		{HealthStatusUnknown, 0},
		{HealthStatusHealthy, 1},
		{HealthStatusUnhealthy, 2},
		{HealthStatusInactive, 3},
		{HealthStatusDegraded, 4},
		{HealthStatus("BOGUS"), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusGauge(tt.status), "gauge value for %s", tt.status)
	}
}

func TestHealth_PercentileLatency(t *testing.T) {
	h := NewHealth("hubchain", "hub")
	for _, d := range []time.Duration{
		9 * time.Millisecond,
		1 * time.Millisecond,
		5 * time.Millisecond,
		3 * time.Millisecond,
		7 * time.Millisecond,
	} {
		h.RecordLatency(d)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Equal(t, 9*time.Millisecond, h.percentileLatency(95))
	assert.Equal(t, 5*time.Millisecond, h.percentileLatency(50))
}
