package protocol

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// txidDomain separates transaction-id hashing from any other sha256 use of
// the same fields. Versioned with the envelope.
const txidDomain = "ovc1"

// TransferIntent is the logical content a transaction id is derived from.
// SenderRef is the caller's reference for the logical transfer (a nonce,
// order id, or upstream tx hash): two sends with the same intent and ref
// collide to the same id, which is what makes the receiver's dedup
// meaningful rather than trivially always-unique.
type TransferIntent struct {
	Kind      model.MessageKind
	SourceEid uint32
	TargetEid uint32
	User      string
	Amount    uint64
	Shares    uint64
	Payload   []byte
	SenderRef string
}

// DeriveTransactionID computes the content-derived 32-byte id for an
// intent. The user identifier is canonicalized first, so re-sends that only
// differ in identifier spelling still collide. Deterministic across
// processes and restarts.
func DeriveTransactionID(intent TransferIntent) model.TransactionID {
	payloadDigest := sha256.Sum256(intent.Payload)
	user := CanonicalUser(intent.User)

	h := sha256.New()
	h.Write([]byte(txidDomain))
	h.Write([]byte{byte(intent.Kind)})

	var fixed [8]byte
	binary.BigEndian.PutUint32(fixed[:4], intent.SourceEid)
	binary.BigEndian.PutUint32(fixed[4:], intent.TargetEid)
	h.Write(fixed[:])

	binary.BigEndian.PutUint64(fixed[:], uint64(len(user)))
	h.Write(fixed[:])
	h.Write([]byte(user))

	binary.BigEndian.PutUint64(fixed[:], intent.Amount)
	h.Write(fixed[:])
	binary.BigEndian.PutUint64(fixed[:], intent.Shares)
	h.Write(fixed[:])

	h.Write(payloadDigest[:])

	binary.BigEndian.PutUint64(fixed[:], uint64(len(intent.SenderRef)))
	h.Write(fixed[:])
	h.Write([]byte(intent.SenderRef))

	var id model.TransactionID
	h.Sum(id[:0])
	return id
}

// MessageHash is the digest the validator gateway authenticates: the hash
// of the exact envelope bytes on the wire.
func MessageHash(envelope []byte) [32]byte {
	return sha256.Sum256(envelope)
}
