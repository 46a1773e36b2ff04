package heap

import (
	"iter"

	"mm_heap/internal/block"
)

// BlockInfo 一个块的只读快照。
type BlockInfo struct {
	Address  uintptr
	Payload  uintptr
	Capacity uint64
	Free     bool
}

// Blocks 按链顺序惰性遍历所有块，不修改链。
func (h *Heap) Blocks() iter.Seq[BlockInfo] {
	return func(yield func(BlockInfo) bool) {
		for b := h.head; b != block.Nil; b = b.Next() {
			info := BlockInfo{
				Address:  b.Addr(),
				Payload:  b.Payload(),
				Capacity: b.Capacity(),
				Free:     b.IsFree(),
			}
			if !yield(info) {
				return
			}
		}
	}
}

// Stats 块、region 和操作计数的汇总。
type Stats struct {
	BlockCount  int
	UsedBlocks  int
	FreeBlocks  int
	UsedBytes   uint64
	FreeBytes   uint64
	LargestFree uint64

	RegionCount int
	MappedBytes uint64

	Allocs       uint64
	Frees        uint64
	Splits       uint64
	Merges       uint64
	GrowInPlace  uint64
	GrowDisjoint uint64
	FailedAllocs uint64
}

// Stats 统计当前链和 region，字节数只计 payload 容量。
func (h *Heap) Stats() Stats {
	s := Stats{
		Allocs:       h.n.allocs,
		Frees:        h.n.frees,
		Splits:       h.n.splits,
		Merges:       h.n.merges,
		GrowInPlace:  h.n.growInPlace,
		GrowDisjoint: h.n.growAway,
		FailedAllocs: h.n.failed,
	}
	for info := range h.Blocks() {
		s.BlockCount++
		if info.Free {
			s.FreeBlocks++
			s.FreeBytes += info.Capacity
			s.LargestFree = max(s.LargestFree, info.Capacity)
		} else {
			s.UsedBlocks++
			s.UsedBytes += info.Capacity
		}
	}
	for _, r := range h.src.Regions() {
		s.RegionCount++
		s.MappedBytes += uint64(r.Len)
	}
	return s
}
