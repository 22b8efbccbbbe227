package composer

import (
	"errors"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/protocol"
	"github.com/omnivault/crosschain-composer/internal/quoter"
)

// The engine's message-level error taxonomy. Every value is terminal for
// the message that raised it: the transport may redeliver, and the dedup
// claim decides what a redelivery means. Codec errors
// (protocol.ErrUnknownMessageKind, protocol.ErrMalformedPayload) and
// routing errors (quoter.ErrUnsupportedDestination) join the taxonomy from
// their own packages.
var (
	// ErrUntrustedSource rejects deliveries whose source endpoint has no
	// whitelisted peer entry, or whose claimed sender is not the
	// registered counterpart address.
	ErrUntrustedSource = errors.New("untrusted source")

	// ErrValidationFailed rejects deliveries whose attestation did not
	// pass the validator gateway.
	ErrValidationFailed = errors.New("attestation validation failed")

	// ErrAlreadyProcessed reports a redelivery of a transfer that has a
	// committed claim. Not a fault: at-least-once transports produce
	// these routinely.
	ErrAlreadyProcessed = errors.New("transfer already processed")

	// ErrTargetNotConfigured rejects sends toward an endpoint with no
	// whitelisted peer entry.
	ErrTargetNotConfigured = errors.New("target endpoint not configured")

	// ErrLowConfidence rejects advisory syncs below the confidence floor,
	// on both the send and the receive side.
	ErrLowConfidence = errors.New("recommendation confidence below floor")

	// ErrNotAuthorized rejects sends whose caller does not hold the
	// composer invocation capability.
	ErrNotAuthorized = errors.New("caller not authorized")

	// ErrCustodyFailure wraps any error returned by the custody ledger.
	// The claim is rolled back so a later redelivery can retry.
	ErrCustodyFailure = errors.New("custody operation failed")
)

// RejectReason maps an error chain to the journaled rejection reason.
// The second return is false for infrastructure errors, which are retried
// by the caller instead of journaled.
func RejectReason(err error) (model.RejectReason, bool) {
	switch {
	case errors.Is(err, protocol.ErrUnknownMessageKind):
		return model.RejectUnknownMessageKind, true
	case errors.Is(err, protocol.ErrMalformedPayload):
		return model.RejectMalformedPayload, true
	case errors.Is(err, ErrUntrustedSource):
		return model.RejectUntrustedSource, true
	case errors.Is(err, ErrValidationFailed):
		return model.RejectValidationFailed, true
	case errors.Is(err, ErrAlreadyProcessed):
		return model.RejectAlreadyProcessed, true
	case errors.Is(err, ErrTargetNotConfigured):
		return model.RejectTargetNotConfigured, true
	case errors.Is(err, quoter.ErrUnsupportedDestination):
		return model.RejectUnsupportedDestination, true
	case errors.Is(err, ErrLowConfidence):
		return model.RejectLowConfidence, true
	case errors.Is(err, ErrNotAuthorized):
		return model.RejectNotAuthorized, true
	case errors.Is(err, ErrCustodyFailure):
		return model.RejectCustodyFailure, true
	default:
		return "", false
	}
}
