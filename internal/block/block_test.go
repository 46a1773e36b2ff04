package block

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"mm_heap/internal/consts"
)

// arena 用 Go 堆上的 []uint64 充当一段 8 字节对齐的内存，测试结束前保持存活。
func arena(t *testing.T, size int) uintptr {
	t.Helper()
	buf := make([]uint64, size/8)
	t.Cleanup(func() { runtime.KeepAlive(buf) })
	return uintptr(unsafe.Pointer(&buf[0]))
}

func TestCapacityRoundTrip(t *testing.T) {
	for x := uint64(1); x <= 10000; x++ {
		c := CapacityFromSize(x)
		require.GreaterOrEqual(t, SizeFromCapacity(c), x)
		require.GreaterOrEqual(t, c, x)
		require.Zero(t, c%consts.Align)
	}
	require.Equal(t, uint64(consts.MinCapacity), CapacityFromSize(1))
	require.Equal(t, uint64(512), CapacityFromSize(512))
	require.Equal(t, uint64(104), CapacityFromSize(100))
}

func TestCapacityOfRegion(t *testing.T) {
	require.Equal(t, uint64(consts.MinRegionSize-consts.HeaderSize), CapacityOfRegion(consts.MinRegionSize))
	require.Equal(t, uint64(consts.MinRegionSize), SizeFromCapacity(CapacityOfRegion(consts.MinRegionSize)))
}

func TestInit(t *testing.T) {
	base := arena(t, 1024)
	b := Init(base, 1024)

	require.Equal(t, base, b.Addr())
	require.Equal(t, base+consts.HeaderSize, b.Payload())
	require.Equal(t, uint64(1024-consts.HeaderSize), b.Capacity())
	require.Equal(t, base+1024, b.End())
	require.True(t, b.IsFree())
	require.Equal(t, Nil, b.Next())

	h := b.Header()
	require.Equal(t, consts.Magic, h.Magic)
	require.Equal(t, consts.StateFree, h.State)
}

func TestSplit(t *testing.T) {
	base := arena(t, 1024)
	b := Init(base, 1024)
	orig := b.Capacity()

	require.True(t, Split(b, 104))
	require.Equal(t, uint64(104), b.Capacity())

	rest := b.Next()
	require.True(t, Adjacent(b, rest))
	require.Equal(t, b.Payload()+104, rest.Addr())
	require.True(t, rest.IsFree())
	require.Equal(t, orig-104-consts.HeaderSize, rest.Capacity())
	require.Equal(t, Nil, rest.Next())
	// 两块仍然铺满整段
	require.Equal(t, base+1024, rest.End())
}

func TestSplitKeepsSuccessor(t *testing.T) {
	base := arena(t, 1024)
	b := Init(base, 1024)
	require.True(t, Split(b, 200))
	tail := b.Next()

	require.True(t, Split(b, 64))
	mid := b.Next()
	require.Equal(t, tail, mid.Next())
	require.Equal(t, uint64(200-64-consts.HeaderSize), mid.Capacity())
}

func TestSplitRefusesSliver(t *testing.T) {
	base := arena(t, 256)
	b := Init(base, 256)
	c := b.Capacity()

	// 余量正好差一个字节放不下 header+MinCapacity
	need := c - (consts.HeaderSize + consts.MinCapacity) + 8
	require.False(t, Split(b, need))
	require.Equal(t, c, b.Capacity())
	require.Equal(t, Nil, b.Next())

	need = c - (consts.HeaderSize + consts.MinCapacity)
	require.True(t, Split(b, need))
	require.Equal(t, uint64(consts.MinCapacity), b.Next().Capacity())
}

func TestAbsorb(t *testing.T) {
	base := arena(t, 1024)
	b := Init(base, 1024)
	require.True(t, Split(b, 104))
	rest := b.Next()
	require.True(t, Split(rest, 104))
	last := rest.Next()

	b.SetFree(true)
	Absorb(b)
	require.Equal(t, uint64(104+consts.HeaderSize+104), b.Capacity())
	require.Equal(t, last, b.Next())
	require.True(t, Adjacent(b, last))
}

func TestFromPayload(t *testing.T) {
	base := arena(t, 128)
	b := Init(base, 128)
	require.Equal(t, b, FromPayload(b.Payload()))
}

func TestStateToggle(t *testing.T) {
	base := arena(t, 128)
	b := Init(base, 128)
	b.SetFree(false)
	require.False(t, b.IsFree())
	require.Equal(t, consts.StateUsed, b.Header().State)
	b.SetFree(true)
	require.True(t, b.IsFree())
}
