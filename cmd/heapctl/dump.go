package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	mm "mm_heap"
)

var (
	dumpAllocs []int
	dumpFrees  []int
	dumpFormat string
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().IntSliceVarP(&dumpAllocs, "alloc", "a", nil, "Sizes to allocate, in order")
	cmd.Flags().IntSliceVarP(&dumpFrees, "free", "f", nil, "Allocations to free afterwards, by 1-based index")
	cmd.Flags().StringVar(&dumpFormat, "format", "table", "Output format: table, text or json")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Allocate, free and dump the block chain",
		Long: `The dump command creates a heap, performs the requested allocations
and frees, and prints the resulting block chain. The heap is released
before the command exits.

Example:
  heapctl dump --alloc 100,100,100,100 --free 3,2
  heapctl dump --alloc 9000 --format text -v
  heapctl dump --alloc 512 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump()
		},
	}
	return cmd
}

func runDump() error {
	format := dumpFormat
	if jsonOut {
		format = "json"
	}
	if format != "table" && format != "text" && format != "json" {
		return errors.Newf("unknown format %q", format)
	}

	hp, err := openHeap()
	if err != nil {
		return err
	}
	defer func() {
		if err := hp.ReleaseAll(); err != nil {
			printError("release heap: %v\n", err)
		}
	}()

	ptrs := make([]uintptr, len(dumpAllocs))
	for i, n := range dumpAllocs {
		if ptrs[i], err = hp.Alloc(n); err != nil {
			return errors.Wrapf(err, "alloc #%d", i+1)
		}
		printVerbose("alloc #%d: %d bytes at %#x\n", i+1, n, ptrs[i])
	}
	for _, idx := range dumpFrees {
		if idx < 1 || idx > len(ptrs) {
			return errors.Wrapf(mm.ErrBadArgument, "free index %d out of range 1..%d", idx, len(ptrs))
		}
		printVerbose("free #%d at %#x\n", idx, ptrs[idx-1])
		hp.Free(ptrs[idx-1])
		ptrs[idx-1] = 0
	}

	if err := hp.Validate(); err != nil {
		return err
	}
	if quiet {
		return nil
	}
	switch format {
	case "json":
		return hp.DumpJSON(os.Stdout)
	case "text":
		return hp.Dump(os.Stdout)
	}
	hp.DumpTable(os.Stdout)
	st := hp.Stats()
	printInfo("%s %d regions, %d bytes mapped, largest free block %d\n",
		headColor("Heap:"), st.RegionCount, st.MappedBytes, st.LargestFree)
	return nil
}
