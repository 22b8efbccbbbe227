package validator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/crosschain-composer/internal/circuitbreaker"
)

type countingVerifier struct {
	calls int
	err   error
}

func (c *countingVerifier) Verify(_ context.Context, _ uint32, _, _ []byte) error {
	c.calls++
	return c.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateway_CachesSuccessfulVerdicts(t *testing.T) {
	cv := &countingVerifier{}
	g := NewGateway(cv, GatewayConfig{Chain: "spoke-alpha"}, testLogger())

	envelope := []byte("envelope")
	att := []byte("attestation")

	require.NoError(t, g.Verify(context.Background(), testSourceEid, envelope, att))
	require.NoError(t, g.Verify(context.Background(), testSourceEid, envelope, att))
	assert.Equal(t, 1, cv.calls)
}

func TestGateway_FailuresNotCached(t *testing.T) {
	cv := &countingVerifier{err: ErrQuorumNotReached}
	g := NewGateway(cv, GatewayConfig{Chain: "spoke-alpha"}, testLogger())

	envelope := []byte("envelope")
	att := []byte("attestation")

	err := g.Verify(context.Background(), testSourceEid, envelope, att)
	assert.ErrorIs(t, err, ErrQuorumNotReached)
	err = g.Verify(context.Background(), testSourceEid, envelope, att)
	assert.ErrorIs(t, err, ErrQuorumNotReached)
	assert.Equal(t, 2, cv.calls)
}

func TestGateway_DifferentAttestationBypassesCache(t *testing.T) {
	cv := &countingVerifier{}
	g := NewGateway(cv, GatewayConfig{Chain: "spoke-alpha"}, testLogger())

	envelope := []byte("envelope")

	require.NoError(t, g.Verify(context.Background(), testSourceEid, envelope, []byte("att-1")))
	require.NoError(t, g.Verify(context.Background(), testSourceEid, envelope, []byte("att-2")))
	assert.Equal(t, 2, cv.calls)
}

func TestGateway_ProbeUnavailableWithoutAddr(t *testing.T) {
	g := NewGateway(&countingVerifier{}, GatewayConfig{Chain: "spoke-alpha"}, testLogger())

	err := g.Probe(context.Background())
	assert.ErrorIs(t, err, ErrProbeUnavailable)
}

func TestGateway_ProbeOpensBreakerAfterFailures(t *testing.T) {
	g := NewGateway(&countingVerifier{}, GatewayConfig{
		Chain: "spoke-alpha",
		// Nothing listens on this port, so every probe fails fast.
		HealthAddr:   "127.0.0.1:1",
		ProbeTimeout: 200 * time.Millisecond,
		Breaker: circuitbreaker.Config{
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
		},
	}, testLogger())
	defer g.Close()

	ctx := context.Background()
	require.Error(t, g.Probe(ctx))
	require.Error(t, g.Probe(ctx))

	err := g.Probe(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuitbreaker.ErrCircuitOpen))
}
