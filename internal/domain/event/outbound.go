package event

import (
	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// Outbound is one message the engine hands to the transport for delivery
// toward TargetEid. Attestations are attached in flight by the validator
// network, never by the sending composer.
type Outbound struct {
	TargetEid uint32
	Sender    string
	Message   model.Message
	Envelope  []byte
	Quote     model.FeeQuote
}

// Receipt reports what one inbound delivery produced: the journaled events
// and any ack messages emitted toward the counterpart flow.
type Receipt struct {
	TransactionID model.TransactionID
	Kind          model.MessageKind
	Events        []model.VaultEvent
	Outbound      []Outbound
}

// SendReceipt reports a completed outbound send.
type SendReceipt struct {
	TransactionID model.TransactionID
	Quote         model.FeeQuote
	StreamID      string
}
