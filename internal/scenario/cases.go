package scenario

import (
	"github.com/cockroachdb/errors"

	"mm_heap/internal/block"
	"mm_heap/internal/consts"
	"mm_heap/internal/errs"
	"mm_heap/internal/mmap"
)

func basic(env Env) error {
	h, release, err := newHeap(env, 1000)
	if err != nil {
		return err
	}
	defer release()
	orig := firstCapacity(h)

	p, err := h.Alloc(512)
	if err != nil {
		return errors.Wrap(err, "alloc 512")
	}
	dump(env, h)
	if b := header(p); b.IsFree() || b.Capacity() < 512 {
		return errors.Newf("block %#x: free=%v capacity=%d", b.Addr(), b.IsFree(), b.Capacity())
	}

	h.Free(p)
	dump(env, h)
	if got := firstCapacity(h); got != orig {
		return errors.Newf("after free: head capacity %d, want %d", got, orig)
	}
	return h.Validate()
}

func freeOne(env Env) error {
	h, release, err := newHeap(env, 1000)
	if err != nil {
		return err
	}
	defer release()

	var ps [3]uintptr
	for i := range ps {
		if ps[i], err = h.Alloc(100); err != nil {
			return errors.Wrapf(err, "alloc block %d", i+1)
		}
	}
	dump(env, h)

	b3 := header(ps[2])
	succ := b3.Next()
	if succ == block.Nil || !succ.IsFree() {
		return errors.Newf("block %#x has no free successor", b3.Addr())
	}
	want := b3.Capacity() + block.SizeFromCapacity(succ.Capacity())

	h.Free(ps[2])
	dump(env, h)
	if !b3.IsFree() || b3.Capacity() != want {
		return errors.Newf("freed block: free=%v capacity=%d, want capacity %d", b3.IsFree(), b3.Capacity(), want)
	}
	return h.Validate()
}

func freeTwo(env Env) error {
	h, release, err := newHeap(env, 1000)
	if err != nil {
		return err
	}
	defer release()

	var ps [4]uintptr
	for i := range ps {
		if ps[i], err = h.Alloc(100); err != nil {
			return errors.Wrapf(err, "alloc block %d", i+1)
		}
	}
	dump(env, h)

	b2, b3, b4 := header(ps[1]), header(ps[2]), header(ps[3])
	want := b2.Capacity() + block.SizeFromCapacity(b3.Capacity())

	h.Free(ps[2])
	h.Free(ps[1])
	dump(env, h)
	if !b2.IsFree() || b2.Next() != b4 || b2.Capacity() != want {
		return errors.Newf("block 2: free=%v next=%#x capacity=%d, want next %#x capacity %d",
			b2.IsFree(), b2.Next().Addr(), b2.Capacity(), b4.Addr(), want)
	}
	if b4.IsFree() {
		return errors.New("block 4 should still be in use")
	}
	return h.Validate()
}

// probeFree 找一段此刻未被映射的地址范围。
func probeFree(n int) (uintptr, error) {
	addr, err := mmap.Map(0, n)
	if err != nil {
		return 0, err
	}
	return addr, mmap.Unmap(addr, n)
}

func growInPlace(env Env) error {
	hint, err := probeFree(4 * max(env.Config.MinRegionSize, consts.MinRegionSize))
	if err != nil {
		return errors.Wrap(err, "probe free range")
	}
	env.Config.StartAddress = hint
	h, release, err := newHeap(env, consts.MinRegionSize)
	if err != nil {
		return err
	}
	defer release()
	if h.Base() != hint {
		return errors.Newf("heap placed at %#x instead of %#x", h.Base(), hint)
	}

	full := firstCapacity(h)
	p1, err := h.Alloc(int(full))
	if err != nil {
		return errors.Wrap(err, "alloc whole region")
	}
	b1 := header(p1)
	dump(env, h)
	if b1.Capacity() != full || b1.Next() != block.Nil {
		return errors.Newf("first block: capacity=%d next=%#x", b1.Capacity(), b1.Next().Addr())
	}

	p2, err := h.Alloc(100)
	if err != nil {
		return errors.Wrap(err, "alloc after exhaustion")
	}
	b2 := header(p2)
	dump(env, h)
	if b2.Addr() != b1.End() || b1.Next() != b2 {
		return errors.Newf("new block at %#x, want %#x", b2.Addr(), b1.End())
	}
	return h.Validate()
}

func growElsewhere(env Env) error {
	h, release, err := newHeap(env, consts.MinRegionSize)
	if err != nil {
		return err
	}
	defer release()

	full := firstCapacity(h)
	p1, err := h.Alloc(int(full))
	if err != nil {
		return errors.Wrap(err, "alloc whole region")
	}
	b1 := header(p1)
	if b1.Capacity() != full || b1.Next() != block.Nil {
		return errors.Newf("first block: capacity=%d next=%#x", b1.Capacity(), b1.Next().Addr())
	}
	dump(env, h)

	taken := b1.End()
	env.log().Info("taking region", "at", taken)
	got, err := mmap.MapFixed(taken, consts.MinRegionSize)
	switch {
	case err == nil:
		defer func() { _ = mmap.Unmap(got, consts.MinRegionSize) }()
	case errors.Is(err, errs.ErrPlacementDenied):
		// 已经有别的映射占着，效果相同
	default:
		return errors.Wrap(err, "take next region")
	}

	p2, err := h.Alloc(int(full))
	if err != nil {
		return errors.Wrap(err, "alloc after exhaustion")
	}
	b2 := header(p2)
	dump(env, h)
	if b2.Addr() == taken {
		return errors.Newf("new block landed on occupied address %#x", taken)
	}
	if b1.Next() != b2 || b2.Next() != block.Nil {
		return errors.Newf("new block %#x is not the chain tail", b2.Addr())
	}
	return h.Validate()
}
