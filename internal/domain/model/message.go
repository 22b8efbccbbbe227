package model

import (
	"encoding/hex"
	"fmt"
)

// MessageKind discriminates the closed set of cross-chain message variants.
// The numeric values are part of the wire format and must never be reused.
type MessageKind uint8

const (
	KindSpokeDeposit        MessageKind = 1
	KindSpokeDepositAck     MessageKind = 2
	KindSpokeWithdraw       MessageKind = 3
	KindSpokeWithdrawAck    MessageKind = 4
	KindAdvisorySyncFromHub MessageKind = 5
)

func (k MessageKind) String() string {
	switch k {
	case KindSpokeDeposit:
		return "SPOKE_DEPOSIT"
	case KindSpokeDepositAck:
		return "SPOKE_DEPOSIT_ACK"
	case KindSpokeWithdraw:
		return "SPOKE_WITHDRAW"
	case KindSpokeWithdrawAck:
		return "SPOKE_WITHDRAW_ACK"
	case KindAdvisorySyncFromHub:
		return "ADVISORY_SYNC_FROM_HUB"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Known reports whether k is one of the five wire kinds.
func (k MessageKind) Known() bool {
	switch k {
	case KindSpokeDeposit, KindSpokeDepositAck, KindSpokeWithdraw,
		KindSpokeWithdrawAck, KindAdvisorySyncFromHub:
		return true
	default:
		return false
	}
}

// TransactionID is the 32-byte content-derived identifier of a logical
// transfer. Redelivery of the same transfer carries the same id.
type TransactionID [32]byte

func (id TransactionID) String() string {
	return hex.EncodeToString(id[:])
}

func (id TransactionID) IsZero() bool {
	return id == TransactionID{}
}

// MarshalText renders the id as lowercase hex, so JSON payloads and db
// columns store the canonical text form.
func (id TransactionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TransactionID) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	if len(decoded) != len(id) {
		return fmt.Errorf("transaction id: want %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// ParseTransactionID parses the canonical hex form.
func ParseTransactionID(s string) (TransactionID, error) {
	var id TransactionID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return TransactionID{}, err
	}
	return id, nil
}

// Message is the central protocol entity: one typed cross-chain message.
// Amount and Shares are mutually exclusive by kind; Payload carries the
// variant-specific tail (the advisory tuple for KindAdvisorySyncFromHub).
type Message struct {
	Kind          MessageKind   `json:"kind"`
	TransactionID TransactionID `json:"transaction_id"`
	User          string        `json:"user"`
	Amount        uint64        `json:"amount"`
	Shares        uint64        `json:"shares"`
	SourceEid     uint32        `json:"source_eid"`
	TargetEid     uint32        `json:"target_eid"`
	Payload       []byte        `json:"payload,omitempty"`
}

const (
	// MaxUserLen bounds the canonical user identifier on the wire.
	MaxUserLen = 64
	// MaxPayloadLen bounds the variant-specific payload tail.
	MaxPayloadLen = 8192
)

// Validate checks the field invariants shared by every kind. Codec-level
// structural checks (lengths, truncation) live in the protocol package.
func (m *Message) Validate() error {
	if !m.Kind.Known() {
		return fmt.Errorf("message: unknown kind %d", uint8(m.Kind))
	}
	if m.User == "" {
		return fmt.Errorf("message %s: user is empty", m.Kind)
	}
	if len(m.User) > MaxUserLen {
		return fmt.Errorf("message %s: user exceeds %d bytes", m.Kind, MaxUserLen)
	}
	if len(m.Payload) > MaxPayloadLen {
		return fmt.Errorf("message %s: payload exceeds %d bytes", m.Kind, MaxPayloadLen)
	}
	if m.SourceEid == 0 || m.TargetEid == 0 {
		return fmt.Errorf("message %s: source and target endpoint ids must be non-zero", m.Kind)
	}
	switch m.Kind {
	case KindSpokeDeposit:
		if m.Amount == 0 {
			return fmt.Errorf("message %s: amount is zero", m.Kind)
		}
		if m.Shares != 0 {
			return fmt.Errorf("message %s: shares must be zero", m.Kind)
		}
	case KindSpokeWithdraw:
		if m.Shares == 0 {
			return fmt.Errorf("message %s: shares is zero", m.Kind)
		}
		if m.Amount != 0 {
			return fmt.Errorf("message %s: amount must be zero", m.Kind)
		}
	case KindSpokeDepositAck:
		if m.Shares == 0 {
			return fmt.Errorf("message %s: shares is zero", m.Kind)
		}
	case KindSpokeWithdrawAck:
		if m.Amount == 0 {
			return fmt.Errorf("message %s: amount is zero", m.Kind)
		}
	case KindAdvisorySyncFromHub:
		if m.Amount != 0 || m.Shares != 0 {
			return fmt.Errorf("message %s: amount and shares must be zero", m.Kind)
		}
		if len(m.Payload) == 0 {
			return fmt.Errorf("message %s: payload is empty", m.Kind)
		}
	}
	return nil
}
