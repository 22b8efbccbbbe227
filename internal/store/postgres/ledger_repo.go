package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/store"
)

// LedgerRepo reads processed_transfers. Writes happen only through
// Tx.ClaimTransfer, inside the engine's transaction.
type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

var _ store.TransactionLedger = (*LedgerRepo)(nil)

func (r *LedgerRepo) Lookup(ctx context.Context, localEid uint32, id model.TransactionID) (*model.TransactionRecord, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var (
		rec   model.TransactionRecord
		txStr string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT transaction_id, local_eid, source_eid, kind, user_id, sequence, processed_at
		FROM processed_transfers
		WHERE local_eid = $1 AND transaction_id = $2
	`, localEid, id.String()).Scan(
		&txStr, &rec.LocalEid, &rec.SourceEid, &rec.Kind,
		&rec.User, &rec.Sequence, &rec.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup processed transfer: %w", err)
	}
	if rec.TransactionID, err = model.ParseTransactionID(txStr); err != nil {
		return nil, fmt.Errorf("lookup processed transfer: %w", err)
	}
	return &rec, nil
}

func (r *LedgerRepo) Recent(ctx context.Context, localEid uint32, limit int) ([]model.TransactionRecord, error) {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, local_eid, source_eid, kind, user_id, sequence, processed_at
		FROM processed_transfers
		WHERE local_eid = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, localEid, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent transfers: %w", err)
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		var (
			rec   model.TransactionRecord
			txStr string
		)
		if err := rows.Scan(
			&txStr, &rec.LocalEid, &rec.SourceEid, &rec.Kind,
			&rec.User, &rec.Sequence, &rec.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan processed transfer: %w", err)
		}
		if rec.TransactionID, err = model.ParseTransactionID(txStr); err != nil {
			return nil, fmt.Errorf("scan processed transfer: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *LedgerRepo) Count(ctx context.Context, localEid uint32) (int64, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM processed_transfers WHERE local_eid = $1
	`, localEid).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count processed transfers: %w", err)
	}
	return count, nil
}
