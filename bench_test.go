package mm_heap_test

import (
	"math/rand"
	"testing"

	mm "mm_heap"
)

func mustInitBenchHeap(b *testing.B, size int) *mm.Heap {
	b.Helper()
	hp, err := mm.Init(size)
	if err != nil {
		b.Fatalf("Init: %v", err)
	}
	b.Cleanup(func() { _ = hp.ReleaseAll() })
	return hp
}

func BenchmarkAllocFree(b *testing.B) {
	hp := mustInitBenchHeap(b, 1<<20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := hp.Alloc(128)
		if err != nil {
			b.Fatal(err)
		}
		hp.Free(p)
	}
}

func BenchmarkRandomMix(b *testing.B) {
	hp := mustInitBenchHeap(b, 1<<20)
	r := rand.New(rand.NewSource(1))
	live := make([]uintptr, 0, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if len(live) == cap(live) || (len(live) > 0 && r.Intn(100) < 50) { // 50% 释放
			j := r.Intn(len(live))
			hp.Free(live[j])
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		p, err := hp.Alloc(1 + r.Intn(1024))
		if err != nil {
			b.Fatal(err)
		}
		live = append(live, p)
	}
}

func BenchmarkNewRecord(b *testing.B) {
	type player struct {
		ID    uint64
		Level int32
		HP    float32
	}
	hp := mustInitBenchHeap(b, 1<<20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := mm.New[player](hp)
		if err != nil {
			b.Fatal(err)
		}
		p.ID = uint64(i)
		mm.Delete(hp, p)
	}
}
