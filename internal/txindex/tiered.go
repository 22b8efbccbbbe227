package txindex

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/omnivault/crosschain-composer/internal/cache"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/store"
)

// TieredIndexConfig configures the 3-tier duplicate index.
type TieredIndexConfig struct {
	BloomExpectedItems int
	BloomFPR           float64
	LRUCapacity        int
	// LRUTTL of zero keeps entries until capacity eviction. Processed
	// transfers never become unprocessed, so there is nothing to expire.
	LRUTTL time.Duration
}

// TieredIndex implements a 3-tier transfer-id lookup:
//
//	Tier 1: Bloom filter per endpoint, a definite "never recorded here"
//	Tier 2: LRU cache holding confirmed records plus negative entries
//	        that absorb bloom false positives
//	Tier 3: Ledger, the authoritative lookup, result cached in the LRU
type TieredIndex struct {
	mu     sync.RWMutex
	blooms map[uint32]*BloomFilter
	lru    *cache.LRU[string, *model.TransactionRecord] // nil value = negative cache
	ledger store.TransactionLedger
	cfg    TieredIndexConfig
}

var _ Index = (*TieredIndex)(nil)

// NewTieredIndex creates a new 3-tier duplicate index over the ledger.
func NewTieredIndex(ledger store.TransactionLedger, cfg TieredIndexConfig) *TieredIndex {
	if cfg.BloomExpectedItems <= 0 {
		cfg.BloomExpectedItems = 10_000_000
	}
	if cfg.BloomFPR <= 0 {
		cfg.BloomFPR = 0.001
	}
	if cfg.LRUCapacity <= 0 {
		cfg.LRUCapacity = 100_000
	}

	return &TieredIndex{
		blooms: make(map[uint32]*BloomFilter),
		lru:    cache.NewLRU[string, *model.TransactionRecord](cfg.LRUCapacity, cfg.LRUTTL),
		ledger: ledger,
		cfg:    cfg,
	}
}

func recordKey(localEid uint32, id model.TransactionID) string {
	return fmt.Sprintf("%d:%s", localEid, id)
}

func eidLabel(localEid uint32) string {
	return strconv.FormatUint(uint64(localEid), 10)
}

// Seen reports whether the transfer id is known processed for the endpoint.
func (t *TieredIndex) Seen(ctx context.Context, localEid uint32, id model.TransactionID) bool {
	return t.Lookup(ctx, localEid, id) != nil
}

// Lookup returns the processed-transfer record, applying the 3-tier strategy.
func (t *TieredIndex) Lookup(ctx context.Context, localEid uint32, id model.TransactionID) *model.TransactionRecord {
	key := recordKey(localEid, id)

	// Tier 1: Bloom filter. No filter for the endpoint means nothing was
	// ever recorded for it.
	bf := t.bloom(localEid)
	if bf == nil || !bf.MayContain(key) {
		metrics.DupIndexBloomSkips.WithLabelValues(eidLabel(localEid)).Inc()
		return nil
	}

	// Tier 2: LRU cache
	if rec, ok := t.lru.Get(key); ok {
		metrics.DupIndexLRUHits.WithLabelValues(eidLabel(localEid)).Inc()
		return rec
	}
	metrics.DupIndexLRUMisses.WithLabelValues(eidLabel(localEid)).Inc()

	// Tier 3: Ledger lookup
	metrics.DupIndexDBLookups.WithLabelValues(eidLabel(localEid)).Inc()
	rec, err := t.ledger.Lookup(ctx, localEid, id)
	if err != nil {
		// The claim inside the engine transaction catches duplicates
		// regardless, so a read failure must answer "not seen" instead
		// of rejecting fresh traffic.
		return nil
	}

	// Cache result (nil = negative cache for bloom FP)
	t.lru.Put(key, rec)
	return rec
}

// Record registers a committed transfer in the bloom filter and the cache.
func (t *TieredIndex) Record(localEid uint32, rec *model.TransactionRecord) {
	key := recordKey(localEid, rec.TransactionID)
	t.ensureBloom(localEid).Add(key)
	t.lru.Put(key, rec)
}

// Warm rebuilds the endpoint's bloom filter from the most recent ledger rows
// and seeds the LRU. Rows older than the warm window fall through to the
// ledger tier on first sight.
func (t *TieredIndex) Warm(ctx context.Context, localEid uint32) error {
	recs, err := t.ledger.Recent(ctx, localEid, t.cfg.LRUCapacity)
	if err != nil {
		return fmt.Errorf("warm duplicate index eid=%d: %w", localEid, err)
	}

	bf := NewBloomFilter(t.cfg.BloomExpectedItems, t.cfg.BloomFPR)
	for i := range recs {
		key := recordKey(localEid, recs[i].TransactionID)
		bf.Add(key)
		t.lru.Put(key, &recs[i])
	}

	t.mu.Lock()
	t.blooms[localEid] = bf
	t.mu.Unlock()
	return nil
}

func (t *TieredIndex) bloom(localEid uint32) *BloomFilter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blooms[localEid]
}

func (t *TieredIndex) ensureBloom(localEid uint32) *BloomFilter {
	t.mu.RLock()
	bf := t.blooms[localEid]
	t.mu.RUnlock()
	if bf != nil {
		return bf
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if bf = t.blooms[localEid]; bf == nil {
		bf = NewBloomFilter(t.cfg.BloomExpectedItems, t.cfg.BloomFPR)
		t.blooms[localEid] = bf
	}
	return bf
}
