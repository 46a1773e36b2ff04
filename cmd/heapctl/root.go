package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	mm "mm_heap"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string

	// Heap flags, override the config file
	initialSize   int
	minRegionSize int
	startAddress  string
)

var (
	passColor = color.New(color.FgGreen).SprintfFunc()
	failColor = color.New(color.FgHiRed).SprintfFunc()
	headColor = color.New(color.Bold).SprintfFunc()
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect an mmap-backed heap",
	Long: `heapctl drives the mm_heap allocator: it runs the built-in allocator
checks, dumps the block chain after a sequence of allocations, and places
typed records directly in mapped memory.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and allocator logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Heap config file (TOML)")

	rootCmd.PersistentFlags().IntVar(&initialSize, "initial-size", 0, "Initial heap size in bytes")
	rootCmd.PersistentFlags().IntVar(&minRegionSize, "min-region-size", 0, "Minimum bytes per mmap call")
	rootCmd.PersistentFlags().StringVar(&startAddress, "start-address", "", "Placement hint for the first region, e.g. 0x4040000 (0 = default, any = kernel choice)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// newLogger 只有 --verbose 时才把分配器日志写到 stderr。
func newLogger() *slog.Logger {
	if !verbose || quiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openHeap 按配置文件和命令行参数创建堆。
func openHeap() (*mm.Heap, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	printVerbose("Initializing heap: initial=%d min_region=%d start=%#x\n",
		cfg.InitialSize, cfg.MinRegionSize, uintptr(cfg.StartAddress))
	return mm.Init(cfg.InitialSize, cfg.options(newLogger())...)
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}
