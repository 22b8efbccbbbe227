package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the events the composer exposes to presentation and
// indexing layers. Emission is at-least-once; consumers dedup on the
// transaction id.
type EventKind string

const (
	EventHubDepositReceived  EventKind = "HUB_DEPOSIT_RECEIVED"
	EventWithdrawProcessed   EventKind = "WITHDRAW_PROCESSED"
	EventAdvisorySyncApplied EventKind = "ADVISORY_SYNC_APPLIED"
	EventMessageRejected     EventKind = "MESSAGE_REJECTED"
	// EventAckObserved journals deposit/withdraw acks arriving back on the
	// originating chain. Not part of the minimum event surface; kept so
	// callers can correlate round trips without scraping logs.
	EventAckObserved EventKind = "ACK_OBSERVED"
)

// RejectReason mirrors the composer error taxonomy for MESSAGE_REJECTED
// events. Values are stable strings consumed by downstream dashboards.
type RejectReason string

const (
	RejectUnknownMessageKind     RejectReason = "UNKNOWN_MESSAGE_KIND"
	RejectMalformedPayload       RejectReason = "MALFORMED_PAYLOAD"
	RejectUntrustedSource        RejectReason = "UNTRUSTED_SOURCE"
	RejectValidationFailed       RejectReason = "VALIDATION_FAILED"
	RejectAlreadyProcessed       RejectReason = "ALREADY_PROCESSED"
	RejectTargetNotConfigured    RejectReason = "TARGET_NOT_CONFIGURED"
	RejectUnsupportedDestination RejectReason = "UNSUPPORTED_DESTINATION"
	RejectLowConfidence          RejectReason = "LOW_CONFIDENCE"
	RejectNotAuthorized          RejectReason = "NOT_AUTHORIZED"
	RejectCustodyFailure         RejectReason = "CUSTODY_FAILURE"
)

// VaultEvent is one append-only journal row. Sequence is assigned by the
// journal on insert and is strictly increasing per local chain.
type VaultEvent struct {
	ID               uuid.UUID     `db:"id"`
	Sequence         int64         `db:"sequence"`
	LocalEid         uint32        `db:"local_eid"`
	Kind             EventKind     `db:"kind"`
	TransactionID    TransactionID `db:"transaction_id"`
	User             string        `db:"user_id"`
	Amount           uint64        `db:"amount"`
	Shares           uint64        `db:"shares"`
	SourceEid        uint32        `db:"source_eid"`
	Reason           *RejectReason `db:"reason"`
	RecommendationID *uuid.UUID    `db:"recommendation_id"`
	Action           *string       `db:"action"`
	Confidence       *int16        `db:"confidence"`
	CreatedAt        time.Time     `db:"created_at"`
}
