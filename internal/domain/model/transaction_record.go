package model

import "time"

// TransactionRecord marks one logical transfer as processed. Inserted
// exactly once per transaction id and never deleted; its presence is the
// sole authority for duplicate rejection.
type TransactionRecord struct {
	TransactionID TransactionID `db:"transaction_id"`
	LocalEid      uint32        `db:"local_eid"`
	SourceEid     uint32        `db:"source_eid"`
	Kind          MessageKind   `db:"kind"`
	User          string        `db:"user_id"`
	Sequence      int64         `db:"sequence"`
	ProcessedAt   time.Time     `db:"processed_at"`
}
