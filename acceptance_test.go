package mm_heap_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	mm "mm_heap"
)

// acceptanceReport 验收测试报告
type acceptanceReport struct {
	Timestamp time.Time
	Results   []testResult
	Summary   summary
}

type testResult struct {
	Category   string
	Name       string
	Passed     bool
	DurationMs int64
}

type summary struct {
	Total  int
	Passed int
	Failed int
}

type testCase struct {
	Category string
	Name     string
	Fn       func(t *testing.T)
}

func runAcceptance(t *testing.T, report *acceptanceReport) {
	report.Timestamp = time.Now()
	report.Results = nil

	cases := []testCase{
		{"Basic", "AllocWriteRead", testAllocWriteRead},
		{"Basic", "AllocFreeCollapses", testAllocFreeCollapses},
		{"ArgumentValidation", "ZeroSize", testZeroSize},
		{"ArgumentValidation", "NegativeSize", testNegativeSize},
		{"ArgumentValidation", "FreeNil", testFreeNil},
		{"Coalescing", "FreeLastMergesTail", testFreeLastMergesTail},
		{"Coalescing", "FreeThirdThenSecond", testFreeThirdThenSecond},
		{"Growth", "LargeRequest", testLargeRequest},
		{"Growth", "DeniedEverywhere", testDeniedEverywhere},
		{"Introspection", "DumpDoesNotMutate", testDumpDoesNotMutate},
		{"Introspection", "DumpJSON", testDumpJSON},
		{"Typed", "NewRecord", testNewRecord},
		{"Typed", "RejectPointers", testRejectPointers},
		{"Stress", "RandomMix", testRandomMix},
	}

	for _, tc := range cases {
		t.Run(tc.Category+"/"+tc.Name, func(t *testing.T) {
			start := time.Now()
			tr := testResult{Category: tc.Category, Name: tc.Name}
			defer func() {
				tr.DurationMs = time.Since(start).Milliseconds()
				tr.Passed = !t.Failed()
				report.Results = append(report.Results, tr)
			}()
			tc.Fn(t)
		})
	}

	report.Summary.Total = len(report.Results)
	for _, r := range report.Results {
		if r.Passed {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
	}
}

// 辅助：创建堆，测试结束时释放全部 region
func tempHeap(t *testing.T, size int, opts ...mm.Option) *mm.Heap {
	t.Helper()
	hp, err := mm.Init(size, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, hp.ReleaseAll()) })
	return hp
}

func blocks(hp *mm.Heap) []mm.BlockInfo {
	var out []mm.BlockInfo
	for b := range hp.Blocks() {
		out = append(out, b)
	}
	return out
}

func testAllocWriteRead(t *testing.T) {
	hp := tempHeap(t, 1000)
	p, err := hp.Alloc(512)
	require.NoError(t, err)
	buf := mm.Bytes(p, 512)
	copy(buf, "hello heap")
	require.Equal(t, "hello heap", string(mm.Bytes(p, 10)))
	require.NoError(t, hp.Validate())
}

func testAllocFreeCollapses(t *testing.T) {
	hp := tempHeap(t, 1000)
	before := blocks(hp)
	p, err := hp.Alloc(512)
	require.NoError(t, err)
	require.Len(t, blocks(hp), 2)
	hp.Free(p)
	require.Equal(t, before, blocks(hp))
}

func testZeroSize(t *testing.T) {
	hp := tempHeap(t, 1000)
	_, err := hp.Alloc(0)
	require.True(t, errors.Is(err, mm.ErrBadArgument))
}

func testNegativeSize(t *testing.T) {
	hp := tempHeap(t, 1000)
	_, err := hp.Alloc(-1)
	require.True(t, errors.Is(err, mm.ErrBadArgument))
	_, err = mm.Init(-1)
	require.True(t, errors.Is(err, mm.ErrBadArgument))
}

func testFreeNil(t *testing.T) {
	hp := tempHeap(t, 1000)
	before := hp.Stats()
	hp.Free(0)
	require.Equal(t, before, hp.Stats())
}

func testFreeLastMergesTail(t *testing.T) {
	hp := tempHeap(t, 1000)
	for i := 0; i < 2; i++ {
		_, err := hp.Alloc(100)
		require.NoError(t, err)
	}
	p, err := hp.Alloc(100)
	require.NoError(t, err)
	bs := blocks(hp)
	hp.Free(p)
	got := blocks(hp)
	require.Len(t, got, 3)
	require.Equal(t, bs[2].Capacity+mm.HeaderSize+bs[3].Capacity, got[2].Capacity)
}

func testFreeThirdThenSecond(t *testing.T) {
	hp := tempHeap(t, 1000)
	var ps [4]uintptr
	for i := range ps {
		var err error
		ps[i], err = hp.Alloc(100)
		require.NoError(t, err)
	}
	bs := blocks(hp)
	hp.Free(ps[2])
	hp.Free(ps[1])
	got := blocks(hp)
	require.Len(t, got, 4)
	require.True(t, got[1].Free)
	require.Equal(t, bs[1].Capacity+mm.HeaderSize+bs[2].Capacity, got[1].Capacity)
	require.Equal(t, bs[3].Address, got[2].Address)
	require.False(t, got[2].Free)
}

func testLargeRequest(t *testing.T) {
	hp := tempHeap(t, 1000)
	p, err := hp.Alloc(10 * mm.MinRegionSize)
	require.NoError(t, err)
	clear(mm.Bytes(p, 10*mm.MinRegionSize))
	require.Len(t, hp.Regions(), 2)
	require.NoError(t, hp.Validate())
}

// denyAll 只放行第一次 Map。
type denyAll struct {
	mm.Mapper
	used bool
}

func (d *denyAll) Map(hint uintptr, size int) (uintptr, error) {
	if d.used {
		return 0, errors.Wrap(unix.ENOMEM, "mmap")
	}
	d.used = true
	return d.Mapper.Map(hint, size)
}

func (d *denyAll) MapFixed(addr uintptr, size int) (uintptr, error) {
	return 0, errors.Mark(errors.New("mmap fixed"), mm.ErrPlacementDenied)
}

func testDeniedEverywhere(t *testing.T) {
	hp := tempHeap(t, 1000, mm.WithMapper(&denyAll{Mapper: mm.OSMapper}))
	before := blocks(hp)
	_, err := hp.Alloc(2 * mm.MinRegionSize)
	require.True(t, errors.Is(err, mm.ErrOutOfMemory))
	require.Equal(t, before, blocks(hp))
	require.Equal(t, uint64(1), hp.Stats().FailedAllocs)
}

func testDumpDoesNotMutate(t *testing.T) {
	hp := tempHeap(t, 1000)
	_, _ = hp.Alloc(100)
	p, _ := hp.Alloc(200)
	hp.Free(p)
	before := blocks(hp)
	st := hp.Stats()

	var buf bytes.Buffer
	require.NoError(t, hp.Dump(&buf))
	require.NoError(t, hp.DumpJSON(&buf))
	hp.DumpTable(&buf)
	require.Equal(t, before, blocks(hp))
	require.Equal(t, st, hp.Stats())
}

func testDumpJSON(t *testing.T) {
	hp := tempHeap(t, 1000)
	_, err := hp.Alloc(512)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, hp.DumpJSON(&buf))
	var got struct {
		Base   string
		Blocks []struct {
			Capacity int
			Free     bool
		}
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, fmt.Sprintf("%#x", hp.Base()), got.Base)
	require.Len(t, got.Blocks, 2)
	require.Equal(t, 512, got.Blocks[0].Capacity)
	require.False(t, got.Blocks[0].Free)
}

type record struct {
	ID    uint64
	Score int32
	Tag   [8]byte
}

func testNewRecord(t *testing.T) {
	hp := tempHeap(t, 1000)
	r, err := mm.New[record](hp)
	require.NoError(t, err)
	r.ID = 7
	copy(r.Tag[:], "player")

	rs, err := mm.NewSlice[record](hp, 16)
	require.NoError(t, err)
	rs[15].Score = -3
	require.Equal(t, uint64(7), r.ID)
	require.Equal(t, int32(-3), rs[15].Score)

	mm.DeleteSlice(hp, rs)
	mm.Delete(hp, r)
	require.Equal(t, 0, hp.Stats().UsedBlocks)
}

func testRejectPointers(t *testing.T) {
	hp := tempHeap(t, 1000)
	_, err := mm.New[struct{ S []int }](hp)
	require.True(t, errors.Is(err, mm.ErrBadArgument))
}

func testRandomMix(t *testing.T) {
	hp := tempHeap(t, 1000)
	rng := rand.New(rand.NewSource(1))
	var live []uintptr
	for i := 0; i < 5000; i++ {
		if len(live) > 0 && rng.Intn(100) < 45 {
			j := rng.Intn(len(live))
			hp.Free(live[j])
			live = append(live[:j], live[j+1:]...)
			continue
		}
		n := 1 + rng.Intn(2048)
		p, err := hp.Alloc(n)
		require.NoError(t, err)
		mm.Bytes(p, n)[n-1] = byte(i)
		live = append(live, p)
	}
	require.NoError(t, hp.Validate())
	require.Equal(t, len(live), hp.Stats().UsedBlocks)
}

// TestAcceptance 运行全部验收测试；设置 MM_HEAP_REPORT_DIR 时写出报告
func TestAcceptance(t *testing.T) {
	report := &acceptanceReport{}
	runAcceptance(t, report)
	if dir := os.Getenv("MM_HEAP_REPORT_DIR"); dir != "" {
		require.NoError(t, writeJSONReport(report, filepath.Join(dir, "acceptance_report.json")))
	}
}

func writeJSONReport(r *acceptanceReport, path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
