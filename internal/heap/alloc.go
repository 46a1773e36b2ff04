package heap

import (
	"github.com/cockroachdb/errors"

	"mm_heap/internal/block"
	"mm_heap/internal/consts"
	"mm_heap/internal/errs"
)

// Alloc 分配至少 size 字节，返回 payload 地址。
func (h *Heap) Alloc(size int) (uintptr, error) {
	if size <= 0 || uint64(size) > consts.MaxRequest {
		return 0, errors.Wrapf(errs.ErrBadArgument, "alloc %d bytes", size)
	}
	need := block.CapacityFromSize(uint64(size))

	b, tail := h.firstFit(need)
	if b == block.Nil {
		if _, err := h.grow(tail, need); err != nil {
			h.n.failed++
			return 0, err
		}
		// 前面的空闲块仍然优先
		b, _ = h.firstFit(need)
		if b == block.Nil {
			h.n.failed++
			return 0, errors.Wrapf(errs.ErrOutOfMemory, "alloc %d bytes after growth", size)
		}
	}
	if block.Split(b, need) {
		h.n.splits++
	}
	b.SetFree(false)
	h.n.allocs++
	return b.Payload(), nil
}

// firstFit 按链顺序找第一个容量足够的空闲块，同时返回链尾。
func (h *Heap) firstFit(need uint64) (found, tail block.Block) {
	for b := h.head; b != block.Nil; b = b.Next() {
		if b.IsFree() && b.Capacity() >= need {
			return b, tail
		}
		tail = b
	}
	return block.Nil, tail
}

// grow 先尝试紧接 tail 原地映射，失败后改为任意地址映射；新 region 成为一个空闲块挂在 tail 之后。
// 两次都失败时链保持原样。
func (h *Heap) grow(tail block.Block, need uint64) (block.Block, error) {
	want := block.SizeFromCapacity(need)

	r, err := h.src.Extend(tail.End(), want)
	if err == nil {
		h.n.growInPlace++
		h.log.Debug("heap grown in place", "at", hexAddr(r.Base), "len", r.Len)
	} else {
		h.log.Debug("in-place growth denied", "at", hexAddr(tail.End()), "err", err)
		r, err = h.src.Acquire(0, want)
		if err != nil {
			h.log.Warn("heap growth failed", "need", need, "err", err)
			return block.Nil, errors.Mark(errors.Wrapf(err, "grow heap by %d bytes", want), errs.ErrOutOfMemory)
		}
		h.n.growAway++
		h.log.Info("heap grown in disjoint region", "at", hexAddr(r.Base), "len", r.Len)
	}

	nb := block.Init(r.Base, uint64(r.Len))
	tail.SetNext(nb)
	return nb, nil
}
