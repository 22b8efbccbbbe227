package cache

import (
	"fmt"
	"testing"
	"time"
)

func BenchmarkLRU_Put(b *testing.B) {
	lru := NewLRU[string, bool](10000, 5*time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lru.Put(fmt.Sprintf("tx-%d", i), true)
	}
}

func BenchmarkLRU_Get_Hit(b *testing.B) {
	lru := NewLRU[string, bool](10000, 5*time.Minute)
	for i := 0; i < 10000; i++ {
		lru.Put(fmt.Sprintf("tx-%d", i), true)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lru.Get(fmt.Sprintf("tx-%d", i%10000))
	}
}

func BenchmarkLRU_Get_Miss(b *testing.B) {
	lru := NewLRU[string, bool](10000, 5*time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lru.Get(fmt.Sprintf("miss-%d", i))
	}
}

func BenchmarkLRU_Put_Eviction(b *testing.B) {
	lru := NewLRU[string, bool](100, 5*time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lru.Put(fmt.Sprintf("tx-%d", i), true)
	}
}

func BenchmarkShardedLRU_MixedParallel(b *testing.B) {
	c := NewShardedLRU[string, bool](10000, 5*time.Minute, func(k string) string { return k })
	for i := 0; i < 10000; i++ {
		c.Put(fmt.Sprintf("tx-%d", i), true)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := fmt.Sprintf("tx-%d", i%12000)
			if i%4 == 0 {
				c.Put(key, true)
			} else {
				c.Get(key)
			}
			i++
		}
	})
}
