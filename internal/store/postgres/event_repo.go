package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/store"
)

// EventJournalRepo reads vault_events. Writes happen only through
// Tx.AppendEvent.
type EventJournalRepo struct {
	db *DB
}

func NewEventJournalRepo(db *DB) *EventJournalRepo {
	return &EventJournalRepo{db: db}
}

var _ store.EventJournal = (*EventJournalRepo)(nil)

func (r *EventJournalRepo) ListAfter(ctx context.Context, localEid uint32, afterSequence int64, limit int) ([]model.VaultEvent, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sequence, local_eid, kind, transaction_id, user_id, amount, shares,
		       source_eid, reason, recommendation_id, action, confidence, created_at
		FROM vault_events
		WHERE local_eid = $1 AND sequence > $2
		ORDER BY sequence
		LIMIT $3
	`, localEid, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("query vault events: %w", err)
	}
	defer rows.Close()

	var events []model.VaultEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func (r *EventJournalRepo) LatestSequence(ctx context.Context, localEid uint32) (int64, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var seq int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) FROM vault_events WHERE local_eid = $1
	`, localEid).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("latest event sequence: %w", err)
	}
	return seq, nil
}

func scanEvent(rows *sql.Rows) (*model.VaultEvent, error) {
	var (
		ev         model.VaultEvent
		txStr      string
		amountStr  string
		sharesStr  string
		reason     sql.NullString
		recID      uuid.NullUUID
		action     sql.NullString
		confidence sql.NullInt16
	)
	if err := rows.Scan(
		&ev.ID, &ev.Sequence, &ev.LocalEid, &ev.Kind, &txStr, &ev.User,
		&amountStr, &sharesStr, &ev.SourceEid,
		&reason, &recID, &action, &confidence, &ev.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan vault event: %w", err)
	}

	var err error
	if ev.TransactionID, err = model.ParseTransactionID(txStr); err != nil {
		return nil, fmt.Errorf("scan vault event: %w", err)
	}
	if ev.Amount, err = parseUint(amountStr); err != nil {
		return nil, fmt.Errorf("scan vault event amount: %w", err)
	}
	if ev.Shares, err = parseUint(sharesStr); err != nil {
		return nil, fmt.Errorf("scan vault event shares: %w", err)
	}
	if reason.Valid {
		rr := model.RejectReason(reason.String)
		ev.Reason = &rr
	}
	if recID.Valid {
		id := recID.UUID
		ev.RecommendationID = &id
	}
	if action.Valid {
		a := action.String
		ev.Action = &a
	}
	if confidence.Valid {
		c := confidence.Int16
		ev.Confidence = &c
	}
	return &ev, nil
}
