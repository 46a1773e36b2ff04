// Package report 把堆的块链渲染成文本、表格或 JSON，只读不改链。
package report

import (
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/olekukonko/tablewriter"

	"mm_heap/internal/heap"
)

// Source 可被渲染的堆。
type Source interface {
	Base() uintptr
	Blocks() iter.Seq[heap.BlockInfo]
	Stats() heap.Stats
}

func state(free bool) string {
	if free {
		return "free"
	}
	return "used"
}

func hex(a uintptr) string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Text 每个块一行，按链顺序输出。
func Text(w io.Writer, src Source) error {
	if _, err := fmt.Fprintf(w, "heap %s\n", hex(src.Base())); err != nil {
		return errors.Wrap(err, "write dump")
	}
	i := 0
	for b := range src.Blocks() {
		_, err := fmt.Fprintf(w, "  #%-3d block %s payload %s capacity %-8d %s\n",
			i, hex(b.Address), hex(b.Payload), b.Capacity, state(b.Free))
		if err != nil {
			return errors.Wrap(err, "write dump")
		}
		i++
	}
	return nil
}

// Table 用 tablewriter 输出块列表，末尾一行是汇总。
func Table(w io.Writer, src Source) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Block", "Payload", "Capacity", "State"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)

	i := 0
	for b := range src.Blocks() {
		table.Append([]string{
			strconv.Itoa(i),
			hex(b.Address),
			hex(b.Payload),
			strconv.FormatUint(b.Capacity, 10),
			state(b.Free),
		})
		i++
	}
	st := src.Stats()
	table.SetFooter([]string{
		"", "", "",
		strconv.FormatUint(st.UsedBytes+st.FreeBytes, 10),
		fmt.Sprintf("%d used / %d free", st.UsedBlocks, st.FreeBlocks),
	})
	table.Render()
}

// JSON 输出 {Base, Blocks, Stats}。
func JSON(w io.Writer, src Source) error {
	jw := jwriter.NewWriter()
	obj := jw.Object()
	obj.Name("Base").String(hex(src.Base()))

	arr := obj.Name("Blocks").Array()
	for b := range src.Blocks() {
		bo := arr.Object()
		bo.Name("Address").String(hex(b.Address))
		bo.Name("Capacity").Int(int(b.Capacity))
		bo.Name("Free").Bool(b.Free)
		bo.End()
	}
	arr.End()

	writeStats(&obj, src.Stats())
	obj.End()

	if err := jw.Error(); err != nil {
		return errors.Wrap(err, "encode dump")
	}
	if _, err := w.Write(jw.Bytes()); err != nil {
		return errors.Wrap(err, "write dump")
	}
	return nil
}

func writeStats(parent *jwriter.ObjectState, st heap.Stats) {
	so := parent.Name("Stats").Object()
	defer so.End()

	so.Name("BlockCount").Int(st.BlockCount)
	so.Name("UsedBlocks").Int(st.UsedBlocks)
	so.Name("FreeBlocks").Int(st.FreeBlocks)
	so.Name("UsedBytes").Int(int(st.UsedBytes))
	so.Name("FreeBytes").Int(int(st.FreeBytes))
	so.Name("LargestFree").Int(int(st.LargestFree))
	so.Name("RegionCount").Int(st.RegionCount)
	so.Name("MappedBytes").Int(int(st.MappedBytes))
	so.Name("Allocs").Int(int(st.Allocs))
	so.Name("Frees").Int(int(st.Frees))
	so.Name("Splits").Int(int(st.Splits))
	so.Name("Merges").Int(int(st.Merges))
	so.Name("GrowInPlace").Int(int(st.GrowInPlace))
	so.Name("GrowDisjoint").Int(int(st.GrowDisjoint))
	so.Name("FailedAllocs").Int(int(st.FailedAllocs))
}
