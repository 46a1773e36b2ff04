package mm_heap

import (
	"io"
	"iter"
	"log/slog"

	"mm_heap/internal/block"
	"mm_heap/internal/consts"
	"mm_heap/internal/errs"
	"mm_heap/internal/heap"
	"mm_heap/internal/region"
	"mm_heap/internal/report"
)

// 对外暴露的 sentinel errors，便于调用方 errors.Is。
var (
	ErrOutOfMemory     = errs.ErrOutOfMemory
	ErrBadArgument     = errs.ErrBadArgument
	ErrPlacementDenied = errs.ErrPlacementDenied
	ErrCorrupt         = errs.ErrCorrupt
	ErrNotSupported    = errs.ErrNotSupported
)

const (
	MinRegionSize       = consts.MinRegionSize
	HeaderSize          = consts.HeaderSize
	DefaultStartAddress = consts.StartAddress
	AnyAddress          = consts.AnyAddress
)

type (
	BlockInfo = heap.BlockInfo
	Stats     = heap.Stats
	Region    = region.Region
	Mapper    = region.Mapper
)

// Option 修改 Init 使用的配置。
type Option func(*heap.Config)

// WithMinRegionSize 设置每次 mmap 的下限，会被取整到页大小。
func WithMinRegionSize(n int) Option {
	return func(c *heap.Config) { c.MinRegionSize = n }
}

// WithStartAddress 设置首个 region 的放置提示。
// 0 表示 DefaultStartAddress，AnyAddress 表示由内核选择。
func WithStartAddress(addr uintptr) Option {
	return func(c *heap.Config) { c.StartAddress = addr }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *heap.Config) { c.Logger = l }
}

// OSMapper 直接调用系统 mmap 的默认 Mapper。
var OSMapper Mapper = region.OS

// WithMapper 替换映射原语，测试里用来模拟 mmap 失败。
func WithMapper(m Mapper) Option {
	return func(c *heap.Config) { c.Mapper = m }
}

// Heap 不是并发安全的，调用方负责串行化访问。
type Heap struct {
	h *heap.Heap
}

// Init 映射初始 region 并返回堆句柄。堆不会自动释放，见 Regions 和 Release。
func Init(initialSize int, opts ...Option) (*Heap, error) {
	var cfg heap.Config
	for _, o := range opts {
		o(&cfg)
	}
	h, err := heap.New(cfg, initialSize)
	if err != nil {
		return nil, err
	}
	return &Heap{h: h}, nil
}

// Alloc 返回至少 size 字节可用内存的地址。
func (hp *Heap) Alloc(size int) (uintptr, error) { return hp.h.Alloc(size) }

// Free 释放 Alloc 返回的地址；0 被忽略。
func (hp *Heap) Free(addr uintptr) { hp.h.Free(addr) }

func (hp *Heap) Base() uintptr { return hp.h.Base() }

func (hp *Heap) Blocks() iter.Seq[BlockInfo] { return hp.h.Blocks() }

func (hp *Heap) Stats() Stats { return hp.h.Stats() }

func (hp *Heap) Validate() error { return hp.h.Validate() }

// Regions 返回堆映射过的全部 region。
func (hp *Heap) Regions() []Region { return hp.h.Regions() }

// Dump 以文本形式输出块链。
func (hp *Heap) Dump(w io.Writer) error { return report.Text(w, hp.h) }

// DumpJSON 以 JSON 形式输出块链和统计。
func (hp *Heap) DumpJSON(w io.Writer) error { return report.JSON(w, hp.h) }

// DumpTable 以表格形式输出块链。
func (hp *Heap) DumpTable(w io.Writer) { report.Table(w, hp.h) }

// Release 解除一个 region 的映射。释放后该 region 内的地址全部失效。
func Release(base uintptr, length int) error {
	return region.Release(base, length)
}

// ReleaseAll 释放堆的全部 region，之后不能再使用 hp。
func (hp *Heap) ReleaseAll() error {
	for _, r := range hp.h.Regions() {
		if err := region.Release(r.Base, r.Len); err != nil {
			return err
		}
	}
	return nil
}

// Bytes 返回 [addr, addr+n) 的字节视图。
func Bytes(addr uintptr, n int) []byte {
	return block.View(addr, n)
}
