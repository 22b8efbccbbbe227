package txindex

import (
	"context"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
)

// Index answers "was this transfer already processed?" without touching the
// database on the common path. A true answer is always backed by a ledger
// row; a false answer only means the fast path cannot rule the message a
// duplicate, and the claim inside the engine transaction stays authoritative.
type Index interface {
	// Seen reports whether the transfer id is known processed for the
	// local endpoint.
	Seen(ctx context.Context, localEid uint32, id model.TransactionID) bool

	// Lookup returns the processed-transfer record, or nil when the
	// transfer is not known processed.
	Lookup(ctx context.Context, localEid uint32, id model.TransactionID) *model.TransactionRecord

	// Record registers a freshly committed transfer so later replays hit
	// the fast path.
	Record(localEid uint32, rec *model.TransactionRecord)

	// Warm rebuilds the endpoint's filter and cache from recent ledger rows.
	Warm(ctx context.Context, localEid uint32) error
}
