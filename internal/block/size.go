package block

import (
	"mm_heap/internal/consts"
	"mm_heap/util"
)

// CapacityFromSize 把申请的 payload 大小换算成需要预留的块容量：按 Align 向上取整，且不小于 MinCapacity。
func CapacityFromSize(n uint64) uint64 {
	c := util.AlignUp(n, consts.Align)
	if c < consts.MinCapacity {
		return consts.MinCapacity
	}
	return c
}

// SizeFromCapacity 返回容量为 c 的块实际占用的字节数（header + capacity）。
func SizeFromCapacity(c uint64) uint64 {
	return c + consts.HeaderSize
}

// CapacityOfRegion 返回铺满 size 字节 region 的单个块的容量。
func CapacityOfRegion(size uint64) uint64 {
	return size - consts.HeaderSize
}
