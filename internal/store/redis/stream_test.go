package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/crosschain-composer/internal/domain/event"
)

func TestStreamNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "composer:eid:30101:inbound", InboundStream(30101))
	assert.Equal(t, "composer:eid:30101:checkpoint", CheckpointKey(30101))
}

func TestParseStreamOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expected  int64
		expectErr bool
	}{
		{name: "empty string", input: "", expected: 0},
		{name: "zero", input: "0", expected: 0},
		{name: "positive integer", input: "123", expected: 123},
		{name: "compound id", input: "123-0", expected: 123},
		{name: "negative clamps to zero", input: "-5", expected: 0},
		{name: "non-numeric", input: "abc", expectErr: true},
		{name: "whitespace trimmed", input: "  42  ", expected: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := parseStreamOffset(tt.input)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidateStreamOffset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "empty string", input: "", expectErr: false},
		{name: "zero", input: "0", expectErr: false},
		{name: "positive integer", input: "42", expectErr: false},
		{name: "compound id", input: "100-0", expectErr: false},
		{name: "non-numeric", input: "abc", expectErr: true},
		{name: "negative", input: "-1", expectErr: true},
		{name: "trailing dash", input: "100-", expectErr: true},
		{name: "negative compound", input: "-100", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateStreamOffset(tt.input)
			if tt.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

type testStringer struct{ value string }

func (s testStringer) String() string { return s.value }

func TestStreamPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     any
		expected  []byte
		expectErr bool
	}{
		{name: "string", input: "hello", expected: []byte("hello")},
		{name: "bytes", input: []byte("world"), expected: []byte("world")},
		{name: "stringer", input: testStringer{value: "from-stringer"}, expected: []byte("from-stringer")},
		{name: "unsupported type", input: 42, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := streamPayload(tt.input)
			if tt.expectErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "not supported")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestInMemoryStream_DeliveryRoundtrip(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx := context.Background()
	sent := event.Delivery{
		Sender:      "0x1111111111111111111111111111111111111111",
		Attestation: []byte{0x01, 0x02},
		Envelope:    []byte{0xde, 0xad, 0xbe, 0xef},
		EnqueuedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	id, err := stream.PublishJSON(ctx, InboundStream(30101), sent)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var got event.Delivery
	nextID, err := stream.ReadJSON(ctx, InboundStream(30101), "0", &got)
	require.NoError(t, err)
	assert.Equal(t, sent.Sender, got.Sender)
	assert.Equal(t, sent.Attestation, got.Attestation)
	assert.Equal(t, sent.Envelope, got.Envelope)
	assert.True(t, sent.EnqueuedAt.Equal(got.EnqueuedAt))
	assert.Equal(t, id, nextID)

	// Endpoint streams are isolated.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = stream.ReadJSON(shortCtx, InboundStream(30102), "0", &got)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryStream_ReadJSON_BlocksUntilMessage(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		_, _ = stream.PublishJSON(ctx, "blocking-stream", event.Delivery{Sender: "0xfeed", Envelope: []byte{0x01}})
	}()

	var dst event.Delivery
	_, err := stream.ReadJSON(ctx, "blocking-stream", "0", &dst)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", dst.Sender)

	wg.Wait()
}

func TestInMemoryStream_ReadJSON_ContextCancellation(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	var dst event.Delivery
	_, err := stream.ReadJSON(ctx, "empty-stream", "0", &dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryStream_CheckpointRoundtrip(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx := context.Background()
	key := CheckpointKey(30101)

	// Load non-existent checkpoint.
	value, err := stream.LoadStreamCheckpoint(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, stream.PersistStreamCheckpoint(ctx, key, "42-0"))

	value, err = stream.LoadStreamCheckpoint(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "42-0", value)
}

func TestInMemoryStream_Checkpoint_EmptyKey(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx := context.Background()

	// Empty key disables checkpointing.
	require.NoError(t, stream.PersistStreamCheckpoint(ctx, "", "42"))

	value, err := stream.LoadStreamCheckpoint(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestInMemoryStream_Checkpoint_InvalidOffset(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	err := stream.PersistStreamCheckpoint(context.Background(), "ck", "abc")
	require.Error(t, err)
}

func TestInMemoryStream_Close(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()

	ctx := context.Background()
	_, _ = stream.PublishJSON(ctx, "s1", event.Delivery{Envelope: []byte{0x01}})
	_ = stream.PersistStreamCheckpoint(ctx, "ck", "1")

	require.NoError(t, stream.Close())

	stream.mu.Lock()
	assert.Empty(t, stream.streams)
	assert.Empty(t, stream.checkpoints)
	stream.mu.Unlock()
}

func TestInMemoryStream_ResumeFromCheckpoint(t *testing.T) {
	t.Parallel()

	stream := NewInMemoryStream()
	defer stream.Close()

	ctx := context.Background()
	name := InboundStream(30101)

	var ids []string
	for _, sender := range []string{"0xaa", "0xbb", "0xcc"} {
		id, err := stream.PublishJSON(ctx, name, event.Delivery{Sender: sender, Envelope: []byte{0x01}})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Read everything, checkpointing after each entry.
	lastID := "0"
	var senders []string
	for i := 0; i < 3; i++ {
		var dst event.Delivery
		nextID, err := stream.ReadJSON(ctx, name, lastID, &dst)
		require.NoError(t, err)
		senders = append(senders, dst.Sender)
		require.NoError(t, stream.PersistStreamCheckpoint(ctx, CheckpointKey(30101), nextID))
		lastID = nextID
	}
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, senders)
	assert.Equal(t, ids[2], lastID)

	// A restarted consumer resumes past everything already read.
	resumed, err := stream.LoadStreamCheckpoint(ctx, CheckpointKey(30101))
	require.NoError(t, err)
	assert.Equal(t, ids[2], resumed)

	length, err := stream.Len(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	var dst event.Delivery
	_, err = stream.ReadJSON(shortCtx, name, resumed, &dst)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
