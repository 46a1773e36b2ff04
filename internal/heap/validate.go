package heap

import (
	"slices"

	"github.com/cockroachdb/errors"

	"mm_heap/internal/block"
	"mm_heap/internal/consts"
	"mm_heap/internal/errs"
	"mm_heap/internal/region"
)

// span 地址上首尾相接的若干 region 合成的区间，块可以跨越其中的 region 边界。
type span struct {
	base, end uintptr
}

func spansOf(rs []region.Region) []span {
	slices.SortFunc(rs, func(a, b region.Region) int {
		switch {
		case a.Base < b.Base:
			return -1
		case a.Base > b.Base:
			return 1
		}
		return 0
	})
	out := make([]span, 0, len(rs))
	for _, r := range rs {
		if n := len(out); n > 0 && out[n-1].end == r.Base {
			out[n-1].end = r.End()
			continue
		}
		out = append(out, span{base: r.Base, end: r.End()})
	}
	return out
}

// Validate 遍历整条链检查一致性，正常使用下不应返回错误。
// 检查项：magic、状态值、块落在某个映射区间内、区间被块恰好铺满、链无环。
func (h *Heap) Validate() error {
	spans := spansOf(h.src.Regions())
	var mapped uint64
	for _, s := range spans {
		if s.end <= s.base {
			return errors.Wrapf(errs.ErrCorrupt, "region [%#x, %#x) is empty", s.base, s.end)
		}
		mapped += uint64(s.end - s.base)
	}
	limit := int(mapped/(consts.HeaderSize+consts.MinCapacity)) + 1

	perSpan := make([][]block.Block, len(spans))
	steps := 0
	for b := h.head; b != block.Nil; b = b.Next() {
		steps++
		if steps > limit {
			return errors.Wrapf(errs.ErrCorrupt, "chain longer than %d blocks, probably a cycle", limit)
		}
		idx := slices.IndexFunc(spans, func(s span) bool {
			return b.Addr() >= s.base && b.Addr()+consts.HeaderSize <= s.end
		})
		if idx < 0 {
			return errors.Wrapf(errs.ErrCorrupt, "block %#x lies outside every mapped region", b.Addr())
		}
		hdr := b.Header()
		if hdr.Magic != consts.Magic {
			return errors.Wrapf(errs.ErrCorrupt, "block %#x has magic %#x", b.Addr(), hdr.Magic)
		}
		if hdr.State != consts.StateFree && hdr.State != consts.StateUsed {
			return errors.Wrapf(errs.ErrCorrupt, "block %#x has unknown state %d", b.Addr(), hdr.State)
		}
		if hdr.Capacity%consts.Align != 0 || hdr.Capacity < consts.MinCapacity {
			return errors.Wrapf(errs.ErrCorrupt, "block %#x has capacity %d", b.Addr(), hdr.Capacity)
		}
		if b.End() > spans[idx].end || b.End() < b.Addr() {
			return errors.Wrapf(errs.ErrCorrupt, "block %#x of capacity %d overruns region end %#x", b.Addr(), hdr.Capacity, spans[idx].end)
		}
		perSpan[idx] = append(perSpan[idx], b)
	}

	for i, s := range spans {
		bs := perSpan[i]
		slices.Sort(bs)
		want := s.base
		for _, b := range bs {
			if b.Addr() < want {
				return errors.Wrapf(errs.ErrCorrupt, "block %#x overlaps previous block ending at %#x", b.Addr(), want)
			}
			if b.Addr() > want {
				return errors.Wrapf(errs.ErrCorrupt, "gap [%#x, %#x) not covered by any block", want, b.Addr())
			}
			want = b.End()
		}
		if want != s.end {
			return errors.Wrapf(errs.ErrCorrupt, "region [%#x, %#x) tiled only up to %#x", s.base, s.end, want)
		}
	}
	return nil
}
