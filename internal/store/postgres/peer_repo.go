package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/store"
)

type PeerRepo struct {
	db *DB
}

func NewPeerRepo(db *DB) *PeerRepo {
	return &PeerRepo{db: db}
}

var _ store.PeerRepository = (*PeerRepo)(nil)

func (r *PeerRepo) Upsert(ctx context.Context, p *model.Peer) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO peers (local_eid, remote_eid, remote_address, whitelisted, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (local_eid, remote_eid) DO UPDATE SET
			remote_address = EXCLUDED.remote_address,
			whitelisted    = EXCLUDED.whitelisted,
			source         = EXCLUDED.source,
			updated_at     = now()
		RETURNING id, created_at, updated_at
	`, p.LocalEid, p.RemoteEid, p.RemoteAddress, p.Whitelisted, string(p.Source),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert peer: %w", err)
	}
	return nil
}

func (r *PeerRepo) Find(ctx context.Context, localEid, remoteEid uint32) (*model.Peer, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var p model.Peer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, local_eid, remote_eid, remote_address, whitelisted, source, created_at, updated_at
		FROM peers
		WHERE local_eid = $1 AND remote_eid = $2
	`, localEid, remoteEid).Scan(
		&p.ID, &p.LocalEid, &p.RemoteEid, &p.RemoteAddress,
		&p.Whitelisted, &p.Source, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find peer: %w", err)
	}
	return &p, nil
}

func (r *PeerRepo) GetWhitelisted(ctx context.Context, localEid uint32) ([]model.Peer, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, local_eid, remote_eid, remote_address, whitelisted, source, created_at, updated_at
		FROM peers
		WHERE local_eid = $1 AND whitelisted = true
		ORDER BY remote_eid
	`, localEid)
	if err != nil {
		return nil, fmt.Errorf("query whitelisted peers: %w", err)
	}
	defer rows.Close()

	return scanPeers(rows)
}

func (r *PeerRepo) List(ctx context.Context) ([]model.Peer, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, local_eid, remote_eid, remote_address, whitelisted, source, created_at, updated_at
		FROM peers
		ORDER BY local_eid, remote_eid
	`)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	defer rows.Close()

	return scanPeers(rows)
}

func (r *PeerRepo) Delete(ctx context.Context, localEid, remoteEid uint32) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM peers WHERE local_eid = $1 AND remote_eid = $2
	`, localEid, remoteEid)
	if err != nil {
		return fmt.Errorf("delete peer: %w", err)
	}
	return nil
}

func scanPeers(rows *sql.Rows) ([]model.Peer, error) {
	var peers []model.Peer
	for rows.Next() {
		var p model.Peer
		if err := rows.Scan(
			&p.ID, &p.LocalEid, &p.RemoteEid, &p.RemoteAddress,
			&p.Whitelisted, &p.Source, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}
