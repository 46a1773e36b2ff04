package consts

// Block header 布局
const (
	Magic      = uint32(0x4B4C424D) // 'MBLK'
	HeaderSize = 8 + 8 + 4 + 2 + 2  // 24 bytes（含 reserved）

	OffCapacity = 0
	OffNext     = 8
	OffMagic    = 16
	OffState    = 20

	StateUsed = uint16(0)
	StateFree = uint16(1)
)

const (
	// Align payload 容量的对齐粒度
	Align = 8
	// MinCapacity 单个块最小可用容量，split 余量小于 HeaderSize+MinCapacity 时不切
	MinCapacity = 24
	// MaxRequest 单次申请上限，防止容量计算溢出
	MaxRequest = 1 << 47
)

const (
	// MinRegionSize 每次 mmap 请求的下限
	MinRegionSize = 2 * 4096
	// StartAddress 首个 region 的放置提示地址，内核可以不采纳
	StartAddress = uintptr(0x04040000)
	// AnyAddress 不给提示，由内核选择首个 region 的位置
	AnyAddress = ^uintptr(0)
)
