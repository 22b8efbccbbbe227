package event

import "time"

// Delivery is one inbound transport carrier: the encoded envelope plus the
// transport-level claims about it. The transport is at-least-once and
// unordered, so the same delivery may arrive any number of times.
//
// Sender is the counterpart address the transport claims authored the
// envelope; the peer registry compares it byte-for-byte against the
// registered peer. Attestation is the externally-supplied authenticity
// proof consumed by the validator gateway.
type Delivery struct {
	Sender      string    `json:"sender"`
	Attestation []byte    `json:"attestation,omitempty"`
	Envelope    []byte    `json:"envelope"`
	EnqueuedAt  time.Time `json:"enqueued_at,omitempty"`
}
