package protocol

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

func randomMessage(rng *rand.Rand, kind model.MessageKind) *model.Message {
	m := &model.Message{
		Kind:      kind,
		User:      randomUser(rng),
		SourceEid: rng.Uint32N(1_000_000) + 1,
		TargetEid: rng.Uint32N(1_000_000) + 1,
	}
	for i := range m.TransactionID {
		m.TransactionID[i] = byte(rng.UintN(256))
	}
	switch kind {
	case model.KindSpokeDeposit:
		m.Amount = rng.Uint64() | 1
	case model.KindSpokeDepositAck:
		m.Shares = rng.Uint64() | 1
	case model.KindSpokeWithdraw:
		m.Shares = rng.Uint64() | 1
	case model.KindSpokeWithdrawAck:
		m.Amount = rng.Uint64() | 1
	case model.KindAdvisorySyncFromHub:
		m.Payload = randomBytes(rng, 1+rng.IntN(512))
	}
	return m
}

func randomUser(rng *rand.Rand) string {
	const alphabet = "0123456789abcdef"
	n := 1 + rng.IntN(model.MaxUserLen)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(b)
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.UintN(256))
	}
	return b
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	kinds := []model.MessageKind{
		model.KindSpokeDeposit,
		model.KindSpokeDepositAck,
		model.KindSpokeWithdraw,
		model.KindSpokeWithdrawAck,
		model.KindAdvisorySyncFromHub,
	}

	for _, kind := range kinds {
		for i := 0; i < 200; i++ {
			original := randomMessage(rng, kind)

			encoded, err := Encode(original)
			if err != nil {
				t.Fatalf("%s: encode failed: %v", kind, err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("%s: decode failed: %v", kind, err)
			}

			if decoded.Kind != original.Kind ||
				decoded.TransactionID != original.TransactionID ||
				decoded.User != original.User ||
				decoded.Amount != original.Amount ||
				decoded.Shares != original.Shares ||
				decoded.SourceEid != original.SourceEid ||
				decoded.TargetEid != original.TargetEid ||
				!bytes.Equal(decoded.Payload, original.Payload) {
				t.Fatalf("%s: round trip mismatch\noriginal: %+v\ndecoded:  %+v", kind, original, decoded)
			}
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	m := randomMessage(rng, model.KindSpokeDeposit)

	first, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("encoding the same message twice produced different bytes")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	encoded, err := Encode(randomMessage(rng, model.KindSpokeDeposit))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for _, kind := range []byte{0, 6, 99, 255} {
		mutated := append([]byte(nil), encoded...)
		mutated[1] = kind
		_, err := Decode(mutated)
		if !errors.Is(err, ErrUnknownMessageKind) {
			t.Fatalf("kind %d: want ErrUnknownMessageKind, got %v", kind, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	encoded, err := Encode(randomMessage(rng, model.KindAdvisorySyncFromHub))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "below minimum", data: encoded[:minWireLen-1]},
		{name: "truncated mid payload", data: encoded[:len(encoded)-1]},
		{name: "trailing byte", data: append(append([]byte(nil), encoded...), 0x00)},
		{name: "wrong version", data: func() []byte {
			d := append([]byte(nil), encoded...)
			d[0] = 2
			return d
		}()},
		{name: "zero user length", data: func() []byte {
			d := append([]byte(nil), encoded...)
			d[headerLen] = 0
			return d
		}()},
		{name: "user length past buffer", data: func() []byte {
			d := append([]byte(nil), encoded[:minWireLen]...)
			d[headerLen] = model.MaxUserLen
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("want ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))

	m := randomMessage(rng, model.KindSpokeDeposit)
	m.User = string(randomBytes(rng, model.MaxUserLen+1))
	if _, err := Encode(m); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("oversized user: want ErrMalformedPayload, got %v", err)
	}

	m = randomMessage(rng, model.KindAdvisorySyncFromHub)
	m.Payload = randomBytes(rng, model.MaxPayloadLen+1)
	if _, err := Encode(m); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("oversized payload: want ErrMalformedPayload, got %v", err)
	}

	m = randomMessage(rng, model.KindSpokeDeposit)
	m.Kind = model.MessageKind(200)
	if _, err := Encode(m); !errors.Is(err, ErrUnknownMessageKind) {
		t.Fatalf("unknown kind: want ErrUnknownMessageKind, got %v", err)
	}
}

func TestAdvisoryPayloadSizesAboveMinimalKinds(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))

	deposit := randomMessage(rng, model.KindSpokeDeposit)
	advisory := randomMessage(rng, model.KindAdvisorySyncFromHub)
	advisory.User = deposit.User

	depositBytes, err := Encode(deposit)
	if err != nil {
		t.Fatalf("encode deposit: %v", err)
	}
	advisoryBytes, err := Encode(advisory)
	if err != nil {
		t.Fatalf("encode advisory: %v", err)
	}
	if len(advisoryBytes) <= len(depositBytes) {
		t.Fatalf("advisory envelope (%d bytes) should exceed minimal deposit (%d bytes)", len(advisoryBytes), len(depositBytes))
	}
}
