// Package heap 实现 mmap 之上的堆：首次适配、切分、与后继合并（不与前驱合并）、两阶段增长。
//
// Heap 不是并发安全的，调用方负责串行化访问。
package heap

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/cockroachdb/errors"

	"mm_heap/internal/block"
	"mm_heap/internal/consts"
	"mm_heap/internal/errs"
	"mm_heap/internal/region"
)

// Config 创建 Heap 的参数，零值字段使用默认值。
// StartAddress 为 0 时用 consts.StartAddress，为 consts.AnyAddress 时不带提示。
type Config struct {
	MinRegionSize int
	StartAddress  uintptr
	Logger        *slog.Logger
	Mapper        region.Mapper
}

func (c Config) withDefaults() Config {
	if c.MinRegionSize <= 0 {
		c.MinRegionSize = consts.MinRegionSize
	}
	if c.StartAddress == 0 {
		c.StartAddress = consts.StartAddress
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Mapper == nil {
		c.Mapper = region.OS
	}
	return c
}

// counters 操作计数，Stats 使用。
type counters struct {
	allocs, frees         uint64
	splits, merges        uint64
	growInPlace, growAway uint64
	failed                uint64
}

type Heap struct {
	head block.Block
	src  *region.Source
	log  *slog.Logger
	n    counters
}

// New 映射第一个 region 并在其中放入一个空闲块。
func New(cfg Config, initialSize int) (*Heap, error) {
	if initialSize <= 0 || uint64(initialSize) > consts.MaxRequest {
		return nil, errors.Wrapf(errs.ErrBadArgument, "initial size %d", initialSize)
	}
	cfg = cfg.withDefaults()
	src := region.NewSource(cfg.Mapper, cfg.MinRegionSize)

	want := block.SizeFromCapacity(block.CapacityFromSize(uint64(initialSize)))
	hint := cfg.StartAddress
	if hint == consts.AnyAddress {
		hint = 0
	}
	r, err := src.Acquire(hint, want)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "init heap of %d bytes", want), errs.ErrOutOfMemory)
	}
	h := &Heap{
		head: block.Init(r.Base, uint64(r.Len)),
		src:  src,
		log:  cfg.Logger,
	}
	h.log.Debug("heap initialized", "base", hexAddr(r.Base), "len", r.Len)
	return h, nil
}

// Base 返回第一个 region 的起始地址。
func (h *Heap) Base() uintptr { return h.head.Addr() }

// Regions 返回已映射的全部 region，供调用方释放。
func (h *Heap) Regions() []region.Region { return h.src.Regions() }

// MinRegionSize 返回取整后的最小 region 大小。
func (h *Heap) MinRegionSize() int { return h.src.MinSize() }

func hexAddr(a uintptr) slog.Value {
	return slog.StringValue("0x" + strconv.FormatUint(uint64(a), 16))
}
