package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// Advisory payload layout, big-endian, carried inside the envelope payload
// of KindAdvisorySyncFromHub:
//
//	recommendationId [16]byte (UUID)
//	action           uint8
//	confidence       uint8
//	expectedReturnBps int32 (two's complement)
//	userLen          uint8, then user bytes
const advisoryFixedLen = 16 + 1 + 1 + 4 + 1

// EncodeRecommendation serializes the advisory tuple for transport. The
// tuple is carried verbatim; business meaning is never interpreted here.
func EncodeRecommendation(rec *model.Recommendation) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("encode recommendation: %w: %v", ErrMalformedPayload, err)
	}
	buf := make([]byte, 0, advisoryFixedLen+len(rec.User))
	buf = append(buf, rec.RecommendationID[:]...)
	buf = append(buf, byte(rec.Action), rec.Confidence)
	buf = binary.BigEndian.AppendUint32(buf, uint32(rec.ExpectedReturnBps))
	buf = append(buf, byte(len(rec.User)))
	buf = append(buf, rec.User...)
	return buf, nil
}

// DecodeRecommendation parses an advisory payload. Confidence gating is the
// engine's job; out-of-range confidence is structural corruption and fails
// here.
func DecodeRecommendation(data []byte) (*model.Recommendation, error) {
	if len(data) < advisoryFixedLen+1 {
		return nil, fmt.Errorf("decode recommendation: %d bytes, need at least %d: %w", len(data), advisoryFixedLen+1, ErrMalformedPayload)
	}

	rec := &model.Recommendation{}
	copy(rec.RecommendationID[:], data[:16])
	rec.Action = model.RecommendationAction(data[16])
	rec.Confidence = data[17]
	rec.ExpectedReturnBps = int32(binary.BigEndian.Uint32(data[18:22]))

	userLen := int(data[22])
	if userLen == 0 || userLen > model.MaxUserLen {
		return nil, fmt.Errorf("decode recommendation: user length %d out of range: %w", userLen, ErrMalformedPayload)
	}
	if len(data) != advisoryFixedLen+userLen {
		return nil, fmt.Errorf("decode recommendation: have %d bytes, payload declares %d: %w", len(data), advisoryFixedLen+userLen, ErrMalformedPayload)
	}
	rec.User = string(data[23:])

	if rec.RecommendationID == uuid.Nil {
		return nil, fmt.Errorf("decode recommendation: nil recommendation id: %w", ErrMalformedPayload)
	}
	if !rec.Action.Known() {
		return nil, fmt.Errorf("decode recommendation: unknown action %d: %w", uint8(rec.Action), ErrMalformedPayload)
	}
	if rec.Confidence > 100 {
		return nil, fmt.Errorf("decode recommendation: confidence %d out of range: %w", rec.Confidence, ErrMalformedPayload)
	}
	return rec, nil
}
