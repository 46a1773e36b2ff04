// Package block 管理写在映射内存里的块链：块头读写、切分、与后继合并。
// 所有地址运算和 unsafe 转换都收在这个包里。
package block

import (
	"encoding/binary"
	"unsafe"

	"mm_heap/internal/consts"
)

// Block 块头所在的地址，Nil 表示没有块。
type Block uintptr

const Nil Block = 0

// View 返回 [addr, addr+n) 的字节视图，内存必须已被映射。
func View(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Init 在 addr 处写入一个铺满 size 字节的空闲块，next 为空。
func Init(addr uintptr, size uint64) Block {
	b := Block(addr)
	EncodeHeader(b.raw(), Header{
		Capacity: CapacityOfRegion(size),
		Next:     0,
		Magic:    consts.Magic,
		State:    consts.StateFree,
	})
	return b
}

// FromPayload 由 payload 地址反推块头地址。
func FromPayload(p uintptr) Block {
	return Block(p - consts.HeaderSize)
}

func (b Block) raw() []byte {
	return View(uintptr(b), consts.HeaderSize)
}

// Addr 返回块头地址。
func (b Block) Addr() uintptr { return uintptr(b) }

// Payload 返回 payload 起始地址。
func (b Block) Payload() uintptr { return uintptr(b) + consts.HeaderSize }

// End 返回 payload 末尾（下一个相邻块应在的位置）。
func (b Block) End() uintptr { return b.Payload() + uintptr(b.Capacity()) }

// Header 解码整个块头（供校验和诊断）。
func (b Block) Header() Header { return DecodeHeader(b.raw()) }

func (b Block) Capacity() uint64 {
	return binary.LittleEndian.Uint64(b.raw()[consts.OffCapacity:])
}

func (b Block) SetCapacity(c uint64) {
	binary.LittleEndian.PutUint64(b.raw()[consts.OffCapacity:], c)
}

func (b Block) Next() Block {
	return Block(binary.LittleEndian.Uint64(b.raw()[consts.OffNext:]))
}

func (b Block) SetNext(n Block) {
	binary.LittleEndian.PutUint64(b.raw()[consts.OffNext:], uint64(n))
}

func (b Block) IsFree() bool {
	return binary.LittleEndian.Uint16(b.raw()[consts.OffState:]) == consts.StateFree
}

func (b Block) SetFree(free bool) {
	st := consts.StateUsed
	if free {
		st = consts.StateFree
	}
	binary.LittleEndian.PutUint16(b.raw()[consts.OffState:], st)
}

// Adjacent 判断 n 是否紧跟在 b 的 payload 之后（两者之间没有空洞）。
func Adjacent(b, n Block) bool {
	return n != Nil && b.End() == n.Addr()
}

// Splittable 判断容量 need 切走后余量是否还能容纳一个 header 和 MinCapacity。
func Splittable(b Block, need uint64) bool {
	c := b.Capacity()
	return c >= need && c-need >= consts.HeaderSize+consts.MinCapacity
}

// Split 把 b 切成 need 容量的前半部分和一个空闲的后半部分，后半部分接在 b.next 上。
// 余量太小时不切，返回 false。
func Split(b Block, need uint64) bool {
	if !Splittable(b, need) {
		return false
	}
	rest := Block(b.Payload() + uintptr(need))
	EncodeHeader(rest.raw(), Header{
		Capacity: b.Capacity() - need - consts.HeaderSize,
		Next:     uint64(b.Next()),
		Magic:    consts.Magic,
		State:    consts.StateFree,
	})
	b.SetCapacity(need)
	b.SetNext(rest)
	return true
}

// Absorb 把 b 的后继并入 b：capacity 加上后继的 header 和容量，next 跳过后继。
// 调用方负责保证后继存在、空闲且与 b 相邻。
func Absorb(b Block) {
	n := b.Next()
	b.SetCapacity(b.Capacity() + consts.HeaderSize + n.Capacity())
	b.SetNext(n.Next())
}
