package block

import (
	"encoding/binary"

	"mm_heap/internal/consts"
)

// Header 块头（capacity/next/magic/state），按 consts 中的偏移编码在块起始处。
type Header struct {
	Capacity uint64
	Next     uint64
	Magic    uint32
	State    uint16
	_        uint16
}

// DecodeHeader 从 data 解码块头。
func DecodeHeader(data []byte) Header {
	return Header{
		Capacity: binary.LittleEndian.Uint64(data[consts.OffCapacity : consts.OffCapacity+8]),
		Next:     binary.LittleEndian.Uint64(data[consts.OffNext : consts.OffNext+8]),
		Magic:    binary.LittleEndian.Uint32(data[consts.OffMagic : consts.OffMagic+4]),
		State:    binary.LittleEndian.Uint16(data[consts.OffState : consts.OffState+2]),
	}
}

// EncodeHeader 将 h 编码到 b（至少 HeaderSize 字节）。
func EncodeHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint64(b[consts.OffCapacity:consts.OffCapacity+8], h.Capacity)
	binary.LittleEndian.PutUint64(b[consts.OffNext:consts.OffNext+8], h.Next)
	binary.LittleEndian.PutUint32(b[consts.OffMagic:consts.OffMagic+4], h.Magic)
	binary.LittleEndian.PutUint16(b[consts.OffState:consts.OffState+2], h.State)
	binary.LittleEndian.PutUint16(b[consts.OffState+2:consts.HeaderSize], 0)
}
