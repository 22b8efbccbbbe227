// Package postgres implements the store contracts on PostgreSQL via
// lib/pq. The dedup claim relies on the unique index of
// processed_transfers: INSERT ... ON CONFLICT DO NOTHING is the single
// linearization point for concurrent deliveries of one transfer.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/store"
)

// Store bundles the repositories sharing one connection pool and
// implements store.TxBeginner.
type Store struct {
	db            *DB
	Peers         *PeerRepo
	Ledger        *LedgerRepo
	Journal       *EventJournalRepo
	RuntimeConfig *RuntimeConfigRepo
}

func NewStore(db *DB) *Store {
	return &Store{
		db:            db,
		Peers:         NewPeerRepo(db),
		Ledger:        NewLedgerRepo(db),
		Journal:       NewEventJournalRepo(db),
		RuntimeConfig: NewRuntimeConfigRepo(db),
	}
}

var _ store.TxBeginner = (*Store)(nil)

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps one *sql.Tx implementing the claim-and-journal unit of work.
type Tx struct {
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

// ClaimTransfer races the unique index on (local_eid, transaction_id).
// RETURNING only yields a row for the inserting winner; every loser sees
// sql.ErrNoRows and reports a duplicate.
func (t *Tx) ClaimTransfer(ctx context.Context, rec *model.TransactionRecord) (bool, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO processed_transfers (transaction_id, local_eid, source_eid, kind, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (local_eid, transaction_id) DO NOTHING
		RETURNING sequence, processed_at
	`, rec.TransactionID.String(), rec.LocalEid, rec.SourceEid, int16(rec.Kind), rec.User,
	).Scan(&rec.Sequence, &rec.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim transfer: %w", err)
	}
	return true, nil
}

func (t *Tx) AppendEvent(ctx context.Context, ev *model.VaultEvent) error {
	var reason sql.NullString
	if ev.Reason != nil {
		reason = sql.NullString{String: string(*ev.Reason), Valid: true}
	}
	var action sql.NullString
	if ev.Action != nil {
		action = sql.NullString{String: *ev.Action, Valid: true}
	}
	var confidence sql.NullInt16
	if ev.Confidence != nil {
		confidence = sql.NullInt16{Int16: *ev.Confidence, Valid: true}
	}
	var recID uuid.NullUUID
	if ev.RecommendationID != nil {
		recID = uuid.NullUUID{UUID: *ev.RecommendationID, Valid: true}
	}

	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO vault_events (
			local_eid, kind, transaction_id, user_id, amount, shares,
			source_eid, reason, recommendation_id, action, confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, sequence, created_at
	`, ev.LocalEid, string(ev.Kind), ev.TransactionID.String(), ev.User,
		formatUint(ev.Amount), formatUint(ev.Shares),
		ev.SourceEid, reason, recID, action, confidence,
	).Scan(&ev.ID, &ev.Sequence, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

// Amounts and shares are uint64 in the domain but NUMERIC(20,0) in the
// schema, so the full unsigned range survives the round trip.
func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v, nil
}
