// Package memory provides a store implementation backed by mutex-guarded
// maps. It honors the same unit-of-work contract as the postgres store:
// rows staged through a Tx become visible only on Commit. Used by tests
// and by single-process deployments that run without a database.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/store"
)

var errTxDone = errors.New("memory: transaction has already been committed or rolled back")

type claimKey struct {
	localEid uint32
	txID     model.TransactionID
}

type peerKey struct {
	localEid  uint32
	remoteEid uint32
}

type runtimeEntry struct {
	value  string
	active bool
}

// Store implements every repository interface over process-local state.
// A single value serves as TxBeginner, PeerRepository, TransactionLedger,
// EventJournal and RuntimeConfigRepository at once.
type Store struct {
	mu sync.RWMutex

	claims   map[claimKey]model.TransactionRecord
	reserved map[claimKey]struct{}
	events   map[uint32][]model.VaultEvent
	peers    map[peerKey]model.Peer
	runtime  map[string]map[string]runtimeEntry

	transferSeq int64
	eventSeq    int64
}

var (
	_ store.TxBeginner              = (*Store)(nil)
	_ store.PeerRepository          = (*Store)(nil)
	_ store.TransactionLedger       = (*Store)(nil)
	_ store.EventJournal            = (*Store)(nil)
	_ store.RuntimeConfigRepository = (*Store)(nil)
)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		claims:   make(map[claimKey]model.TransactionRecord),
		reserved: make(map[claimKey]struct{}),
		events:   make(map[uint32][]model.VaultEvent),
		peers:    make(map[peerKey]model.Peer),
		runtime:  make(map[string]map[string]runtimeEntry),
	}
}

// Begin starts a unit of work. Writes are staged and published on Commit.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: s}, nil
}

// Tx stages claims and journal rows until Commit. Sequence numbers are
// allocated eagerly, so a rolled-back Tx leaves gaps just like the
// BIGSERIAL-backed postgres implementation.
type Tx struct {
	store *Store
	done  bool

	claims []model.TransactionRecord
	events []model.VaultEvent
}

// ClaimTransfer reserves the (local endpoint, transaction id) pair. A key
// reserved by another in-flight unit of work already counts as taken; the
// caller is not blocked on the competing writer the way SQL would block it.
func (t *Tx) ClaimTransfer(ctx context.Context, rec *model.TransactionRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if t.done {
		return false, errTxDone
	}
	s := t.store
	key := claimKey{localEid: rec.LocalEid, txID: rec.TransactionID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[key]; ok {
		return false, nil
	}
	if _, ok := s.reserved[key]; ok {
		return false, nil
	}
	s.reserved[key] = struct{}{}
	s.transferSeq++
	rec.Sequence = s.transferSeq
	rec.ProcessedAt = time.Now().UTC()
	t.claims = append(t.claims, *rec)
	return true, nil
}

// AppendEvent stages a journal row and fills in the assigned id, sequence
// and creation time.
func (t *Tx) AppendEvent(ctx context.Context, ev *model.VaultEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.done {
		return errTxDone
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSeq++
	ev.ID = uuid.New()
	ev.Sequence = s.eventSeq
	ev.CreatedAt = time.Now().UTC()
	t.events = append(t.events, *ev)
	return nil
}

// Commit publishes staged rows and releases claim reservations.
func (t *Tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range t.claims {
		key := claimKey{localEid: rec.LocalEid, txID: rec.TransactionID}
		delete(s.reserved, key)
		s.claims[key] = rec
	}
	for _, ev := range t.events {
		list := append(s.events[ev.LocalEid], ev)
		// Units of work may commit out of allocation order.
		sort.Slice(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
		s.events[ev.LocalEid] = list
	}
	t.claims, t.events = nil, nil
	return nil
}

// Rollback discards staged rows. Calling it after Commit is a no-op so
// deferred rollbacks stay cheap.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range t.claims {
		delete(s.reserved, claimKey{localEid: rec.LocalEid, txID: rec.TransactionID})
	}
	t.claims, t.events = nil, nil
	return nil
}

// Upsert inserts or replaces a peer entry, filling in id and timestamps.
func (s *Store) Upsert(ctx context.Context, p *model.Peer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := peerKey{localEid: p.LocalEid, remoteEid: p.RemoteEid}
	now := time.Now().UTC()
	if existing, ok := s.peers[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = uuid.New()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.peers[key] = *p
	return nil
}

// Find returns the peer entry for the pair, or nil when absent.
func (s *Store) Find(ctx context.Context, localEid, remoteEid uint32) (*model.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[peerKey{localEid: localEid, remoteEid: remoteEid}]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

// GetWhitelisted returns whitelisted peers for the endpoint ordered by
// remote endpoint id.
func (s *Store) GetWhitelisted(ctx context.Context, localEid uint32) ([]model.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Peer
	for key, p := range s.peers {
		if key.localEid == localEid && p.Whitelisted {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteEid < out[j].RemoteEid })
	return out, nil
}

// List returns all peer entries ordered by (local, remote) endpoint id.
func (s *Store) List(ctx context.Context) ([]model.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocalEid != out[j].LocalEid {
			return out[i].LocalEid < out[j].LocalEid
		}
		return out[i].RemoteEid < out[j].RemoteEid
	})
	return out, nil
}

// Delete removes a peer entry. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, localEid, remoteEid uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, peerKey{localEid: localEid, remoteEid: remoteEid})
	return nil
}

// Lookup returns the committed processed-transfer record, or nil when the
// transfer has not been processed.
func (s *Store) Lookup(ctx context.Context, localEid uint32, id model.TransactionID) (*model.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.claims[claimKey{localEid: localEid, txID: id}]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

// Recent returns the most recently processed transfers, newest first.
func (s *Store) Recent(ctx context.Context, localEid uint32, limit int) ([]model.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TransactionRecord
	for key, rec := range s.claims {
		if key.localEid == localEid {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of committed processed transfers for the endpoint.
func (s *Store) Count(ctx context.Context, localEid uint32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for key := range s.claims {
		if key.localEid == localEid {
			n++
		}
	}
	return n, nil
}

// ListAfter returns committed events with sequence strictly greater than
// afterSequence, oldest first.
func (s *Store) ListAfter(ctx context.Context, localEid uint32, afterSequence int64, limit int) ([]model.VaultEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.events[localEid]
	start := sort.Search(len(list), func(i int) bool { return list[i].Sequence > afterSequence })
	end := len(list)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]model.VaultEvent, end-start)
	copy(out, list[start:end])
	return out, nil
}

// LatestSequence returns the highest committed event sequence for the
// endpoint, or zero when the journal is empty.
func (s *Store) LatestSequence(ctx context.Context, localEid uint32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.events[localEid]
	if len(list) == 0 {
		return 0, nil
	}
	return list[len(list)-1].Sequence, nil
}

// GetActive returns the active runtime overrides for a chain.
func (s *Store) GetActive(ctx context.Context, chain string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for key, e := range s.runtime[chain] {
		if e.active {
			out[key] = e.value
		}
	}
	return out, nil
}

// Set upserts a runtime override and marks it active.
func (s *Store) Set(ctx context.Context, chain, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runtime[chain] == nil {
		s.runtime[chain] = make(map[string]runtimeEntry)
	}
	s.runtime[chain][key] = runtimeEntry{value: value, active: true}
	return nil
}

// Deactivate hides a key from GetActive while keeping its last value.
func (s *Store) Deactivate(ctx context.Context, chain, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.runtime[chain][key]; ok {
		e.active = false
		s.runtime[chain][key] = e
	}
	return nil
}
