package txindex

import (
	"math"
	"sync"
)

// BloomFilter is a thread-safe bloom filter using Kirsch-Mitzenmacher
// double-hashing. A negative answer is definitive, which is what the
// duplicate fast-path needs: a transfer id the filter has never seen cannot
// be a replay.
type BloomFilter struct {
	mu   sync.RWMutex
	bits []uint64
	m    uint64 // total bits
	k    uint   // number of hash functions
}

// NewBloomFilter creates a bloom filter sized for expectedItems with the given
// false positive rate (fpr). For example, 10M items at 0.001 FPR ≈ 17MB.
func NewBloomFilter(expectedItems int, fpr float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = 0.001
	}

	n := float64(expectedItems)
	// Optimal bit count: m = -n*ln(p) / (ln(2))^2
	m := uint64(math.Ceil(-n * math.Log(fpr) / (math.Ln2 * math.Ln2)))
	// Optimal hash count: k = (m/n) * ln(2)
	k := uint(math.Ceil(float64(m) / n * math.Ln2))
	if k < 1 {
		k = 1
	}

	words := (m + 63) / 64
	return &BloomFilter{
		bits: make([]uint64, words),
		m:    m,
		k:    k,
	}
}

// Add inserts a key into the bloom filter.
func (bf *BloomFilter) Add(key string) {
	h1, h2 := hashPair(key)
	bf.mu.Lock()
	for i := uint(0); i < bf.k; i++ {
		pos := (h1 + uint64(i)*h2) % bf.m
		bf.bits[pos/64] |= 1 << (pos % 64)
	}
	bf.mu.Unlock()
}

// MayContain returns false if the key is definitely not in the set.
// Returns true if the key is probably in the set (subject to FPR).
// Probes allocate nothing; this runs for every inbound delivery.
func (bf *BloomFilter) MayContain(key string) bool {
	h1, h2 := hashPair(key)
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	for i := uint(0); i < bf.k; i++ {
		pos := (h1 + uint64(i)*h2) % bf.m
		if bf.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears every bit, emptying the filter.
func (bf *BloomFilter) Reset() {
	bf.mu.Lock()
	for i := range bf.bits {
		bf.bits[i] = 0
	}
	bf.mu.Unlock()
}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// hashPair derives the two probing bases from a single FNV-64a pass.
// The second hash is a splitmix64 finalize of the first, independent
// enough for double-hashing and free of per-call allocations.
func hashPair(key string) (uint64, uint64) {
	h1 := uint64(fnvOffset64)
	for i := 0; i < len(key); i++ {
		h1 ^= uint64(key[i])
		h1 *= fnvPrime64
	}

	h2 := h1
	h2 ^= h2 >> 30
	h2 *= 0xbf58476d1ce4e5b9
	h2 ^= h2 >> 27
	h2 *= 0x94d049bb133111eb
	h2 ^= h2 >> 31
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
