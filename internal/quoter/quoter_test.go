package quoter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

const (
	hubEid   uint32 = 30100
	alphaEid uint32 = 30101
)

type stubProber struct {
	err   error
	calls int
}

func (s *stubProber) Probe(context.Context) error {
	s.calls++
	return s.err
}

func testModels() map[uint32]model.CostModel {
	return map[uint32]model.CostModel{
		alphaEid: {
			BaseFee:             1000,
			PerByteFee:          10,
			GasPriceNative:      2,
			SecondaryFlatFee:    500,
			SecondaryPerByteFee: 5,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func depositMsg(user string) *model.Message {
	return &model.Message{
		Kind:      model.KindSpokeDeposit,
		User:      user,
		Amount:    2500,
		SourceEid: hubEid,
		TargetEid: alphaEid,
	}
}

func TestQuote_NativeFee(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())

	// Envelope for a 5-byte user is 66 bytes, priced at the 96-byte bucket.
	quote, err := q.Quote(context.Background(), depositMsg("0xabc"),
		model.DeliveryOptions{GasLimit: 200000}, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000+10*96+2*200000), quote.NativeFee)
	assert.Equal(t, uint64(0), quote.SecondaryTokenFee)
	assert.True(t, quote.Valid)
}

func TestQuote_SecondaryTokenFee(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())

	quote, err := q.Quote(context.Background(), depositMsg("0xabc"),
		model.DeliveryOptions{GasLimit: 100, PayInSecondaryToken: true}, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(500+5*96), quote.SecondaryTokenFee)
	assert.Equal(t, uint64(1000+10*96+2*100), quote.NativeFee)
}

func TestQuote_UnsupportedDestination(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())

	msg := depositMsg("0xabc")
	msg.TargetEid = 99999

	_, err := q.Quote(context.Background(), msg, model.DeliveryOptions{}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDestination)
}

func TestQuote_EncodeFailure(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())

	msg := depositMsg("")
	_, err := q.Quote(context.Background(), msg, model.DeliveryOptions{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode for quote")
}

func TestQuote_MemoizesWithinBucket(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())
	opts := model.DeliveryOptions{GasLimit: 500}

	// 66-byte and 71-byte envelopes share the 96-byte bucket.
	a, err := q.Quote(context.Background(), depositMsg("0xabc"), opts, false)
	require.NoError(t, err)
	b, err := q.Quote(context.Background(), depositMsg("0xabcdef0000"), opts, false)
	require.NoError(t, err)
	assert.Equal(t, a.NativeFee, b.NativeFee)

	hits, misses := q.memo.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestQuote_MonotonicInSize(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())
	opts := model.DeliveryOptions{GasLimit: 1000}

	var prev uint64
	for _, payloadLen := range []int{0, 1, 100, 1000, 8000} {
		msg := depositMsg("0xabc")
		msg.Payload = make([]byte, payloadLen)
		quote, err := q.Quote(context.Background(), msg, opts, false)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, quote.NativeFee, prev, "payload len %d", payloadLen)
		prev = quote.NativeFee
	}
}

func TestQuote_DryRun(t *testing.T) {
	t.Run("probe passes", func(t *testing.T) {
		prober := &stubProber{}
		q := New("hub-main", testModels(), prober, testLogger())

		quote, err := q.Quote(context.Background(), depositMsg("0xabc"),
			model.DeliveryOptions{}, true)
		require.NoError(t, err)
		assert.True(t, quote.Valid)
		assert.Equal(t, 1, prober.calls)
	})

	t.Run("probe fails", func(t *testing.T) {
		prober := &stubProber{err: errors.New("attester down")}
		q := New("hub-main", testModels(), prober, testLogger())

		quote, err := q.Quote(context.Background(), depositMsg("0xabc"),
			model.DeliveryOptions{}, true)
		require.NoError(t, err)
		assert.False(t, quote.Valid)
		assert.NotZero(t, quote.NativeFee)
	})

	t.Run("no prober configured", func(t *testing.T) {
		q := New("hub-main", testModels(), nil, testLogger())

		quote, err := q.Quote(context.Background(), depositMsg("0xabc"),
			model.DeliveryOptions{}, true)
		require.NoError(t, err)
		assert.False(t, quote.Valid)
	})
}

func TestSetModel_RepricesAndDropsMemo(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())
	opts := model.DeliveryOptions{}

	before, err := q.Quote(context.Background(), depositMsg("0xabc"), opts, false)
	require.NoError(t, err)

	q.SetModel(alphaEid, model.CostModel{BaseFee: 9000})

	after, err := q.Quote(context.Background(), depositMsg("0xabc"), opts, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), after.NativeFee)
	assert.NotEqual(t, before.NativeFee, after.NativeFee)

	got, ok := q.Model(alphaEid)
	require.True(t, ok)
	assert.Equal(t, uint64(9000), got.BaseFee)
}

func TestModels_Snapshot(t *testing.T) {
	q := New("hub-main", testModels(), &stubProber{}, testLogger())

	snap := q.Models()
	require.Len(t, snap, 1)

	// Mutating the snapshot must not affect the quoter.
	snap[alphaEid] = model.CostModel{BaseFee: 1}
	got, ok := q.Model(alphaEid)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), got.BaseFee)
}
