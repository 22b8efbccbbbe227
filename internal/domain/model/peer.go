package model

import (
	"time"

	"github.com/google/uuid"
)

// PeerSource records who registered a peer entry.
type PeerSource string

const (
	PeerSourceTopology PeerSource = "topology"
	PeerSourceAdmin    PeerSource = "admin"
)

// Peer is one trusted counterpart entry: the composer at RemoteAddress on
// the chain behind RemoteEid, as seen from the chain behind LocalEid.
// Inbound messages from a source with no whitelisted entry are rejected
// before any further processing.
type Peer struct {
	ID            uuid.UUID  `db:"id"`
	LocalEid      uint32     `db:"local_eid"`
	RemoteEid     uint32     `db:"remote_eid"`
	RemoteAddress string     `db:"remote_address"`
	Whitelisted   bool       `db:"whitelisted"`
	Source        PeerSource `db:"source"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}
