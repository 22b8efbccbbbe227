// Package validator checks the authenticity proofs attached to inbound
// deliveries. Every message must carry an attestation signed by a quorum
// of the validator keys trusted for its source endpoint.
package validator

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/omnivault/crosschain-composer/internal/config"
	"github.com/omnivault/crosschain-composer/internal/protocol"
)

var (
	// ErrNoKeyset means no validator set is configured for the source
	// endpoint, so the delivery cannot be authenticated at all.
	ErrNoKeyset = errors.New("no validator keyset for source endpoint")

	// ErrMalformedAttestation means the attestation bytes do not parse
	// as a sequence of signature entries.
	ErrMalformedAttestation = errors.New("malformed attestation")

	// ErrQuorumNotReached means the attestation parsed but fewer than
	// threshold distinct keys produced a valid signature.
	ErrQuorumNotReached = errors.New("attestation quorum not reached")
)

// Each attestation entry is one byte of key index followed by an ed25519
// signature over the envelope digest.
const (
	attestationEntrySize = 1 + ed25519.SignatureSize
)

// Verifier authenticates one inbound envelope against its attestation.
type Verifier interface {
	Verify(ctx context.Context, sourceEid uint32, envelope, attestation []byte) error
}

// QuorumVerifier is the pure signature-counting core. Signatures are
// checked against the keyset registered for the source endpoint; a
// delivery passes when at least threshold distinct keys signed the
// envelope digest. Invalid signatures do not count toward the quorum but
// do not fail the check outright, so one stale co-signer cannot block an
// otherwise sufficient attestation.
type QuorumVerifier struct {
	keysets map[uint32]config.Keyset
}

func NewQuorumVerifier(keysets map[uint32]config.Keyset) *QuorumVerifier {
	return &QuorumVerifier{keysets: keysets}
}

func (v *QuorumVerifier) Verify(_ context.Context, sourceEid uint32, envelope, attestation []byte) error {
	ks, ok := v.keysets[sourceEid]
	if !ok {
		return fmt.Errorf("source eid %d: %w", sourceEid, ErrNoKeyset)
	}
	if len(attestation) == 0 {
		return fmt.Errorf("empty attestation: %w", ErrMalformedAttestation)
	}
	if len(attestation)%attestationEntrySize != 0 {
		return fmt.Errorf("attestation length %d not a multiple of %d: %w",
			len(attestation), attestationEntrySize, ErrMalformedAttestation)
	}

	digest := protocol.MessageHash(envelope)

	seen := make(map[uint8]bool, len(ks.Keys))
	valid := 0
	for off := 0; off < len(attestation); off += attestationEntrySize {
		keyIndex := attestation[off]
		sig := attestation[off+1 : off+attestationEntrySize]

		if int(keyIndex) >= len(ks.Keys) {
			return fmt.Errorf("key index %d out of range for keyset of %d: %w",
				keyIndex, len(ks.Keys), ErrMalformedAttestation)
		}
		// A repeated key index is a padding attempt, not a co-signer.
		if seen[keyIndex] {
			return fmt.Errorf("key index %d repeated: %w", keyIndex, ErrMalformedAttestation)
		}
		seen[keyIndex] = true

		if ed25519.Verify(ks.Keys[keyIndex], digest[:], sig) {
			valid++
		}
	}

	if valid < ks.Threshold {
		return fmt.Errorf("source eid %d: %d valid of %d required: %w",
			sourceEid, valid, ks.Threshold, ErrQuorumNotReached)
	}
	return nil
}
