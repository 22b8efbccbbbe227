package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopConfig() Config {
	return Config{ServiceName: "composerd-test", SampleRatio: 0.1}
}

func TestInit_EmptyEndpointInstallsNoopProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), noopConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
}

func TestTracer_ReturnsNonNil(t *testing.T) {
	shutdown, err := Init(context.Background(), noopConfig())
	require.NoError(t, err)
	defer shutdown(context.Background())

	tracer := Tracer("composer")
	require.NotNil(t, tracer)

	// Spans from the no-op provider are valid but unrecorded.
	_, span := tracer.Start(context.Background(), "engine.receive")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestInit_ShutdownIdempotent(t *testing.T) {
	shutdown, err := Init(context.Background(), noopConfig())
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
	assert.NoError(t, shutdown(context.Background()))
}
