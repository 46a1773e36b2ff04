package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"mm_heap/internal/heap"
	"mm_heap/internal/scenario"
)

var (
	checkKeepGoing bool
	checkShowDumps bool
)

var errChecksFailed = errors.New("one or more checks failed")

func init() {
	cmd := newCheckCmd()
	cmd.Flags().BoolVarP(&checkKeepGoing, "keep-going", "k", false, "Run remaining checks after a failure")
	cmd.Flags().BoolVar(&checkShowDumps, "dumps", false, "Print heap dumps taken during the checks")
	rootCmd.AddCommand(cmd)
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [scenario...]",
		Short: "Run the allocator checks",
		Long: `The check command runs the built-in allocator scenarios, each on a
fresh heap that is released afterwards. Without arguments all scenarios run
in order and the run stops at the first failure.

Example:
  heapctl check
  heapctl check free-two grow-elsewhere --dumps
  heapctl check --keep-going --json`,
		ValidArgs: scenario.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), args)
		},
	}
	return cmd
}

func runCheck(ctx context.Context, names []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	env := scenario.Env{
		Log: newLogger(),
		Config: heap.Config{
			MinRegionSize: cfg.MinRegionSize,
			StartAddress:  uintptr(cfg.StartAddress),
		},
	}
	if checkShowDumps && !quiet && !jsonOut {
		env.Out = os.Stdout
	}

	var results []scenario.Result
	if len(names) == 0 {
		results = scenario.RunAll(ctx, env, !checkKeepGoing)
	} else {
		for _, name := range names {
			r := scenario.Run(ctx, name, env)
			results = append(results, r)
			if !r.Passed() && !checkKeepGoing {
				break
			}
		}
	}

	if jsonOut {
		if err := printCheckJSON(results); err != nil {
			return err
		}
	} else if !quiet {
		printCheckTable(results)
	}

	for _, r := range results {
		if !r.Passed() {
			return errChecksFailed
		}
	}
	return nil
}

func printCheckTable(results []scenario.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Check", "Result", "Time", "Detail"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	passed := 0
	for _, r := range results {
		status, detail := passColor("PASS"), r.Desc
		if r.Passed() {
			passed++
		} else {
			status, detail = failColor("FAIL"), r.Err.Error()
		}
		table.Append([]string{r.Name, status, r.Duration.String(), detail})
	}
	table.Render()
	printInfo("%s %d/%d passed\n", headColor("Summary:"), passed, len(results))
}

func printCheckJSON(results []scenario.Result) error {
	w := jwriter.NewWriter()
	arr := w.Array()
	for _, r := range results {
		obj := arr.Object()
		obj.Name("Name").String(r.Name)
		obj.Name("Passed").Bool(r.Passed())
		obj.Name("DurationUs").Int(int(r.Duration.Microseconds()))
		if r.Err != nil {
			obj.Name("Error").String(r.Err.Error())
		}
		obj.End()
	}
	arr.End()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "encode results")
	}
	_, err := fmt.Fprintln(os.Stdout, string(w.Bytes()))
	return err
}
