package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	mm "mm_heap"
)

var demoCount int

func init() {
	cmd := newDemoCmd()
	cmd.Flags().IntVarP(&demoCount, "count", "n", 8, "Number of players to create")
	rootCmd.AddCommand(cmd)
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Place typed player records in mapped memory",
		Long: `The demo command allocates fixed-size player records directly in the
heap, frees every other one, allocates a new batch into the holes and
prints the records together with the heap statistics.

Example:
  heapctl demo
  heapctl demo -n 100 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
	return cmd
}

// Player 不含指针，可以直接放进映射内存。
type Player struct {
	ID   uint64
	HP   uint32
	MP   uint32
	Name [32]byte
}

func newPlayer(hp *mm.Heap, id uint64, name string) (*Player, error) {
	p, err := mm.New[Player](hp)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.HP = uint32(100 + id)
	p.MP = uint32(50 + id)
	copy(p.Name[:], name)
	return p, nil
}

func (p *Player) name() string {
	n := 0
	for n < len(p.Name) && p.Name[n] != 0 {
		n++
	}
	return string(p.Name[:n])
}

func runDemo() error {
	if demoCount <= 0 {
		return errors.Wrapf(mm.ErrBadArgument, "count %d", demoCount)
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

	players := make([]*Player, 0, demoCount)
	for i := 0; i < demoCount; i++ {
		p, err := newPlayer(hp, uint64(i), fmt.Sprintf("player%d", i))
		if err != nil {
			return err
		}
		players = append(players, p)
	}

	// 释放一半，再分配同样数量的 master 填进空洞
	kept := players[:0]
	for i, p := range players {
		if i%2 == 0 {
			mm.Delete(hp, p)
			continue
		}
		kept = append(kept, p)
	}
	players = kept
	for i := 0; i < demoCount/2; i++ {
		p, err := newPlayer(hp, uint64(demoCount+i), fmt.Sprintf("master%d", i))
		if err != nil {
			return err
		}
		players = append(players, p)
	}

	if err := hp.Validate(); err != nil {
		return err
	}
	if quiet {
		return nil
	}
	if jsonOut {
		return hp.DumpJSON(os.Stdout)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "HP", "MP", "Address"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range players {
		table.Append([]string{
			strconv.FormatUint(p.ID, 10),
			p.name(),
			strconv.FormatUint(uint64(p.HP), 10),
			strconv.FormatUint(uint64(p.MP), 10),
			fmt.Sprintf("%p", p),
		})
	}
	table.Render()

	st := hp.Stats()
	printInfo("%s %d used / %d free blocks, %d allocs, %d frees, %d merges, %d regions\n",
		headColor("Heap:"), st.UsedBlocks, st.FreeBlocks, st.Allocs, st.Frees, st.Merges, st.RegionCount)
	return nil
}
