package cache

import "time"

const defaultShardCount = 16

// FNV-32a, inlined so shard selection does not allocate a hasher or a
// byte slice per probe.
const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

func fnv32a(s string) uint32 {
	h := uint32(fnvOffset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime32
	}
	return h
}

// Cache is the interface shared by LRU and ShardedLRU.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Remove(key K)
	Purge()
	Len() int
	Stats() (hits, misses int64)
}

var _ Cache[string, int] = (*LRU[string, int])(nil)
var _ Cache[string, int] = (*ShardedLRU[string, int])(nil)

// ShardedLRU spreads keys over independent LRU shards to cut lock
// contention on hot paths (the duplicate index sees every inbound
// delivery). Shard selection hashes the key's string form with FNV-32a.
type ShardedLRU[K comparable, V any] struct {
	shards   []*LRU[K, V]
	count    uint32
	keyToStr func(K) string
}

// NewShardedLRU distributes totalCapacity evenly over the default shard
// count. keyFn renders a key for shard selection.
func NewShardedLRU[K comparable, V any](totalCapacity int, ttl time.Duration, keyFn func(K) string) *ShardedLRU[K, V] {
	return NewShardedLRUWithCount[K, V](totalCapacity, ttl, keyFn, defaultShardCount)
}

func NewShardedLRUWithCount[K comparable, V any](totalCapacity int, ttl time.Duration, keyFn func(K) string, shardCount int) *ShardedLRU[K, V] {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	perShard := totalCapacity / shardCount
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]*LRU[K, V], shardCount)
	for i := range shards {
		shards[i] = NewLRU[K, V](perShard, ttl)
	}
	return &ShardedLRU[K, V]{
		shards:   shards,
		count:    uint32(shardCount),
		keyToStr: keyFn,
	}
}

func (s *ShardedLRU[K, V]) shard(key K) *LRU[K, V] {
	return s.shards[fnv32a(s.keyToStr(key))%s.count]
}

func (s *ShardedLRU[K, V]) Get(key K) (V, bool) {
	return s.shard(key).Get(key)
}

func (s *ShardedLRU[K, V]) Put(key K, value V) {
	s.shard(key).Put(key, value)
}

func (s *ShardedLRU[K, V]) Remove(key K) {
	s.shard(key).Remove(key)
}

func (s *ShardedLRU[K, V]) Purge() {
	for _, sh := range s.shards {
		sh.Purge()
	}
}

func (s *ShardedLRU[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

func (s *ShardedLRU[K, V]) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return
}
