// Package region 是 mmap 之上的 region 来源：申请新 region、在固定地址原地扩展、释放。
package region

import (
	"github.com/cockroachdb/errors"

	"mm_heap/internal/errs"
	"mm_heap/internal/mmap"
	"mm_heap/util"
)

// Mapper 映射原语；默认实现转发到 internal/mmap，测试可以换成会拒绝请求的实现。
type Mapper interface {
	Map(hint uintptr, size int) (uintptr, error)
	MapFixed(addr uintptr, size int) (uintptr, error)
	Unmap(addr uintptr, size int) error
}

type osMapper struct{}

func (osMapper) Map(hint uintptr, size int) (uintptr, error)      { return mmap.Map(hint, size) }
func (osMapper) MapFixed(addr uintptr, size int) (uintptr, error) { return mmap.MapFixed(addr, size) }
func (osMapper) Unmap(addr uintptr, size int) error               { return mmap.Unmap(addr, size) }

// OS 直接调用系统 mmap 的 Mapper。
var OS Mapper = osMapper{}

// Region 一次 mmap 得到的连续区间。
type Region struct {
	Base uintptr
	Len  int
	// Contiguous 为 true 表示该 region 是原地扩展得到的，紧接在前一个 region 之后。
	Contiguous bool
}

// End 返回 region 末尾地址（不含）。
func (r Region) End() uintptr { return r.Base + uintptr(r.Len) }

// Source 记录每次映射得到的 region，不负责自动释放。
type Source struct {
	m       Mapper
	minSize int
	page    int
	regions []Region
}

// NewSource 创建 Source，minSize 会被取整到页大小。
func NewSource(m Mapper, minSize int) *Source {
	if m == nil {
		m = OS
	}
	page := mmap.PageSize()
	if minSize < page {
		minSize = page
	}
	return &Source{
		m:       m,
		minSize: int(util.AlignUp(uint64(minSize), uint64(page))),
		page:    page,
		regions: make([]Region, 0, 4),
	}
}

// MinSize 返回取整后的最小 region 大小。
func (s *Source) MinSize() int { return s.minSize }

// PageSize 返回页大小。
func (s *Source) PageSize() int { return s.page }

// sizeFor 返回满足 n 字节的映射长度：不小于 minSize，按页取整。
func (s *Source) sizeFor(n uint64) (int, error) {
	if n < uint64(s.minSize) {
		n = uint64(s.minSize)
	}
	sz := util.AlignUp(n, uint64(s.page))
	if sz < n || sz > uint64(^uint(0)>>1) {
		return 0, errors.Wrapf(errs.ErrBadArgument, "region of %d bytes too large", n)
	}
	return int(sz), nil
}

// Acquire 映射至少 n 字节的新 region，hint 非 0 时作为放置提示。
func (s *Source) Acquire(hint uintptr, n uint64) (Region, error) {
	size, err := s.sizeFor(n)
	if err != nil {
		return Region{}, err
	}
	base, err := s.m.Map(hint, size)
	if err != nil {
		return Region{}, err
	}
	r := Region{Base: base, Len: size}
	s.regions = append(s.regions, r)
	return r, nil
}

// Extend 尝试在 addr 处原地映射至少 n 字节；addr 已被占用时返回带 ErrPlacementDenied 标记的错误。
func (s *Source) Extend(addr uintptr, n uint64) (Region, error) {
	size, err := s.sizeFor(n)
	if err != nil {
		return Region{}, err
	}
	if !util.IsAligned(uint64(addr), uint64(s.page)) {
		return Region{}, errors.Wrapf(errs.ErrPlacementDenied, "extend at %#x: not page aligned", addr)
	}
	base, err := s.m.MapFixed(addr, size)
	if err != nil {
		return Region{}, err
	}
	r := Region{Base: base, Len: size, Contiguous: true}
	s.regions = append(s.regions, r)
	return r, nil
}

// Regions 返回已映射 region 的副本（按映射顺序）。
func (s *Source) Regions() []Region {
	return append([]Region(nil), s.regions...)
}

// Release 解除 [base, base+length) 的映射。
func Release(base uintptr, length int) error {
	return mmap.Unmap(base, length)
}
