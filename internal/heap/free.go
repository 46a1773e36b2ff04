package heap

import "mm_heap/internal/block"

// Free 释放 Alloc 返回的地址，并吞并紧随其后的空闲块。addr 为 0 时什么也不做。
// 重复释放或传入非法地址的行为未定义。
func (h *Heap) Free(addr uintptr) {
	if addr == 0 {
		return
	}
	b := block.FromPayload(addr)
	b.SetFree(true)
	h.n.frees++
	for n := b.Next(); n != block.Nil && n.IsFree() && block.Adjacent(b, n); n = b.Next() {
		block.Absorb(b)
		h.n.merges++
	}
}
