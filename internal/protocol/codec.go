// Package protocol implements the wire format of the vault composer: the
// binary message envelope, the advisory payload encoding, user identity
// canonicalization, and content-derived transaction ids.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// EnvelopeVersion is the only wire version this codec speaks. Bumping it is
// a coordinated topology-wide upgrade.
const EnvelopeVersion = 1

var (
	// ErrUnknownMessageKind reports a discriminant outside the closed kind set.
	ErrUnknownMessageKind = errors.New("unknown message kind")
	// ErrMalformedPayload reports truncated, oversized, or trailing bytes.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope layout, big-endian:
//
//	version   uint8
//	kind      uint8
//	srcEid    uint32
//	dstEid    uint32
//	txId      [32]byte
//	userLen   uint8, then user bytes (1..model.MaxUserLen)
//	amount    uint64
//	shares    uint64
//	payloadLen uint16, then payload bytes (0..model.MaxPayloadLen)
const (
	headerLen  = 1 + 1 + 4 + 4 + 32
	fixedTail  = 8 + 8 + 2
	minWireLen = headerLen + 1 + 1 + fixedTail // one-byte user, empty payload
)

// Encode serializes m into its binary envelope. It enforces structural
// bounds only; kind-specific field invariants belong to Message.Validate.
func Encode(m *model.Message) ([]byte, error) {
	if !m.Kind.Known() {
		return nil, fmt.Errorf("encode: kind %d: %w", uint8(m.Kind), ErrUnknownMessageKind)
	}
	userLen := len(m.User)
	if userLen == 0 || userLen > model.MaxUserLen {
		return nil, fmt.Errorf("encode: user length %d out of range: %w", userLen, ErrMalformedPayload)
	}
	if len(m.Payload) > model.MaxPayloadLen {
		return nil, fmt.Errorf("encode: payload length %d exceeds %d: %w", len(m.Payload), model.MaxPayloadLen, ErrMalformedPayload)
	}

	buf := make([]byte, 0, headerLen+1+userLen+fixedTail+len(m.Payload))
	buf = append(buf, EnvelopeVersion, byte(m.Kind))
	buf = binary.BigEndian.AppendUint32(buf, m.SourceEid)
	buf = binary.BigEndian.AppendUint32(buf, m.TargetEid)
	buf = append(buf, m.TransactionID[:]...)
	buf = append(buf, byte(userLen))
	buf = append(buf, m.User...)
	buf = binary.BigEndian.AppendUint64(buf, m.Amount)
	buf = binary.BigEndian.AppendUint64(buf, m.Shares)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(m.Payload)))
	buf = append(buf, m.Payload...)
	return buf, nil
}

// Decode parses an envelope produced by Encode. The buffer must be consumed
// exactly; trailing bytes fail like any other malformation so a partial or
// concatenated read never half-parses.
func Decode(data []byte) (*model.Message, error) {
	if len(data) < minWireLen {
		return nil, fmt.Errorf("decode: %d bytes, need at least %d: %w", len(data), minWireLen, ErrMalformedPayload)
	}
	if data[0] != EnvelopeVersion {
		return nil, fmt.Errorf("decode: unsupported envelope version %d: %w", data[0], ErrMalformedPayload)
	}
	kind := model.MessageKind(data[1])
	if !kind.Known() {
		return nil, fmt.Errorf("decode: kind %d: %w", data[1], ErrUnknownMessageKind)
	}

	m := &model.Message{Kind: kind}
	m.SourceEid = binary.BigEndian.Uint32(data[2:6])
	m.TargetEid = binary.BigEndian.Uint32(data[6:10])
	copy(m.TransactionID[:], data[10:42])

	off := headerLen
	userLen := int(data[off])
	off++
	if userLen == 0 || userLen > model.MaxUserLen {
		return nil, fmt.Errorf("decode: user length %d out of range: %w", userLen, ErrMalformedPayload)
	}
	if len(data) < off+userLen+fixedTail {
		return nil, fmt.Errorf("decode: truncated before user tail: %w", ErrMalformedPayload)
	}
	m.User = string(data[off : off+userLen])
	off += userLen

	m.Amount = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	m.Shares = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	payloadLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if payloadLen > model.MaxPayloadLen {
		return nil, fmt.Errorf("decode: payload length %d exceeds %d: %w", payloadLen, model.MaxPayloadLen, ErrMalformedPayload)
	}
	if len(data) != off+payloadLen {
		return nil, fmt.Errorf("decode: have %d bytes, envelope declares %d: %w", len(data), off+payloadLen, ErrMalformedPayload)
	}
	if payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		copy(m.Payload, data[off:])
	}
	return m, nil
}
