package buffer

import (
	"fmt"
	"testing"
)

// BenchmarkRingAppend measures append throughput at history-sized capacities.
func BenchmarkRingAppend(b *testing.B) {
	for _, capacity := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("cap_%d", capacity), func(b *testing.B) {
			ring, err := NewRing[int](capacity)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					ring.Append(i)
					i++
				}
			})
		})
	}
}

// BenchmarkRingSnapshot measures full-copy reads from a full ring.
func BenchmarkRingSnapshot(b *testing.B) {
	for _, capacity := range []int{100, 1000} {
		b.Run(fmt.Sprintf("cap_%d", capacity), func(b *testing.B) {
			ring, err := NewRing[int](capacity)
			if err != nil {
				b.Fatal(err)
			}
			for i := 0; i < capacity; i++ {
				ring.Append(i)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = ring.Snapshot()
			}
		})
	}
}

// BenchmarkRingLast measures trailing-window reads from a full ring.
func BenchmarkRingLast(b *testing.B) {
	ring, err := NewRing[int](1000)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		ring.Append(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ring.Last(50)
	}
}
