package store

import (
	"context"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// Tx is a unit of work covering the dedup claim and the journal rows for
// one inbound message. Implementations commit both or neither.
type Tx interface {
	// ClaimTransfer inserts the processed-transfer row for (local endpoint,
	// transaction id). It returns false when the row already exists, which
	// marks the message as a duplicate.
	ClaimTransfer(ctx context.Context, rec *model.TransactionRecord) (bool, error)

	// AppendEvent writes a journal row and fills in the assigned sequence.
	// Sequence numbers are allocated at insert time, so rolled-back
	// transactions leave gaps.
	AppendEvent(ctx context.Context, ev *model.VaultEvent) error

	Commit() error
	Rollback() error
}

// TxBeginner abstracts the ability to begin a unit of work.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// PeerRepository provides access to the peer whitelist.
type PeerRepository interface {
	Upsert(ctx context.Context, p *model.Peer) error
	Find(ctx context.Context, localEid, remoteEid uint32) (*model.Peer, error)
	GetWhitelisted(ctx context.Context, localEid uint32) ([]model.Peer, error)
	List(ctx context.Context) ([]model.Peer, error)
	Delete(ctx context.Context, localEid, remoteEid uint32) error
}

// TransactionLedger provides read access to processed-transfer rows. The
// write side goes through Tx.ClaimTransfer.
type TransactionLedger interface {
	// Lookup returns the record for (local endpoint, transaction id), or
	// nil when the transfer has not been processed.
	Lookup(ctx context.Context, localEid uint32, id model.TransactionID) (*model.TransactionRecord, error)

	// Recent returns the most recently processed transfers for an
	// endpoint, newest first. Used to warm the duplicate index.
	Recent(ctx context.Context, localEid uint32, limit int) ([]model.TransactionRecord, error)

	Count(ctx context.Context, localEid uint32) (int64, error)
}

// EventJournal provides read access to the vault event journal. The write
// side goes through Tx.AppendEvent.
type EventJournal interface {
	// ListAfter returns events for an endpoint with sequence strictly
	// greater than afterSequence, oldest first.
	ListAfter(ctx context.Context, localEid uint32, afterSequence int64, limit int) ([]model.VaultEvent, error)

	LatestSequence(ctx context.Context, localEid uint32) (int64, error)
}

// RuntimeConfigRepository provides access to runtime-overridable
// configuration keyed by chain name. Deactivated keys keep their last
// value but disappear from GetActive.
type RuntimeConfigRepository interface {
	GetActive(ctx context.Context, chain string) (map[string]string, error)
	Set(ctx context.Context, chain, key, value string) error
	Deactivate(ctx context.Context, chain, key string) error
}
