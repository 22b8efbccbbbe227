package txindex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomFilter_AddAndContains(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	bf.Add("1:aaaa")
	bf.Add("1:bbbb")

	assert.True(t, bf.MayContain("1:aaaa"))
	assert.True(t, bf.MayContain("1:bbbb"))

	// Probe keys that were never added; with 1000 capacity and only 2
	// items the FP rate should be near zero.
	falsePositives := 0
	for i := 0; i < 100; i++ {
		if bf.MayContain(fmt.Sprintf("1:unknown_%d", i)) {
			falsePositives++
		}
	}
	assert.Less(t, falsePositives, 5, "too many false positives for nearly empty filter")
}

func TestBloomFilter_FalsePositiveRate(t *testing.T) {
	n := 10000
	bf := NewBloomFilter(n, 0.01)

	for i := 0; i < n; i++ {
		bf.Add(fmt.Sprintf("tx_%d", i))
	}

	for i := 0; i < n; i++ {
		require.True(t, bf.MayContain(fmt.Sprintf("tx_%d", i)), "added key must be found")
	}

	// Check FPR on keys NOT in the set
	testCount := 100000
	falsePositives := 0
	for i := n; i < n+testCount; i++ {
		if bf.MayContain(fmt.Sprintf("tx_%d", i)) {
			falsePositives++
		}
	}

	empiricalFPR := float64(falsePositives) / float64(testCount)
	// Allow up to 2% (target is 0.01, but allow some variance)
	assert.Less(t, empiricalFPR, 0.02, "empirical FPR %f exceeds threshold", empiricalFPR)
	t.Logf("empirical FPR: %.4f%% (%d/%d)", empiricalFPR*100, falsePositives, testCount)
}

func TestBloomFilter_Reset(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	bf.Add("1:aaaa")
	require.True(t, bf.MayContain("1:aaaa"))

	bf.Reset()

	assert.False(t, bf.MayContain("1:aaaa"), "after reset, filter should be empty")
}

func TestBloomFilter_DegenerateSizing(t *testing.T) {
	bf := NewBloomFilter(0, 5.0)

	bf.Add("only")
	assert.True(t, bf.MayContain("only"))
}

func TestHashPair_SecondHashNeverZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		_, h2 := hashPair(fmt.Sprintf("probe_%d", i))
		require.NotZero(t, h2, "zero stride would degrade double-hashing to a single probe")
	}
}

func TestAllocRegression_MayContain(t *testing.T) {
	bf := NewBloomFilter(10000, 0.01)
	bf.Add("30101:resident")

	hit := testing.AllocsPerRun(100, func() {
		bf.MayContain("30101:resident")
	})
	assert.Equal(t, float64(0), hit, "bloom probe on the delivery path must be zero-alloc")

	miss := testing.AllocsPerRun(100, func() {
		bf.MayContain("30101:absent")
	})
	assert.Equal(t, float64(0), miss)
}
