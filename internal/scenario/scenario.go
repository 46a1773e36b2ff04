// Package scenario 收录堆的端到端检查：分配、释放合并、原地增长、异地增长。
// 每个场景自己创建堆，结束时释放映射过的全部 region。
package scenario

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"mm_heap/internal/block"
	"mm_heap/internal/heap"
	"mm_heap/internal/region"
	"mm_heap/internal/report"
)

// Env 场景运行环境，零值可用。
type Env struct {
	// Out 接收场景过程中的堆转储，nil 表示丢弃。
	Out    io.Writer
	Log    *slog.Logger
	Config heap.Config
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e Env) log() *slog.Logger {
	if e.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Log
}

type Scenario struct {
	Name string
	Desc string
	Fn   func(env Env) error
}

// Result 一个场景的运行结果。
type Result struct {
	Name     string
	Desc     string
	Err      error
	Duration time.Duration
}

func (r Result) Passed() bool { return r.Err == nil }

var ErrUnknown = errors.New("scenario: unknown name")

// All 按固定顺序返回全部场景。
func All() []Scenario {
	return []Scenario{
		{"basic", "allocate 512 bytes from a fresh heap", basic},
		{"free-one", "free the last of three blocks, it merges with the free tail", freeOne},
		{"free-two", "free third then second block, second absorbs third", freeTwo},
		{"grow-in-place", "exhaust the region, next region extends it at the exact end", growInPlace},
		{"grow-elsewhere", "exhaust the region with its end occupied, next region lands elsewhere", growElsewhere},
	}
}

// Names 返回全部场景名。
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.Name
	}
	return out
}

// Run 运行名为 name 的场景。
func Run(ctx context.Context, name string, env Env) Result {
	for _, s := range All() {
		if s.Name == name {
			return runOne(ctx, s, env)
		}
	}
	return Result{Name: name, Err: errors.Wrapf(ErrUnknown, "%q", name)}
}

// RunAll 依次运行全部场景；stopOnFail 为 true 时遇到第一个失败就停止。
func RunAll(ctx context.Context, env Env, stopOnFail bool) []Result {
	all := All()
	results := make([]Result, 0, len(all))
	for _, s := range all {
		r := runOne(ctx, s, env)
		results = append(results, r)
		if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
			break
		}
		if stopOnFail && !r.Passed() {
			break
		}
	}
	return results
}

func runOne(ctx context.Context, s Scenario, env Env) Result {
	r := Result{Name: s.Name, Desc: s.Desc}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}
	log := env.log().With("scenario", s.Name)
	log.Info("running")
	env.Log = log
	start := time.Now()
	r.Err = s.Fn(env)
	r.Duration = time.Since(start)
	if r.Err != nil {
		log.Error("failed", "err", r.Err, "took", r.Duration)
	} else {
		log.Info("passed", "took", r.Duration)
	}
	return r
}

// newHeap 创建堆，返回的 release 释放它映射过的所有 region。
func newHeap(env Env, initial int) (*heap.Heap, func(), error) {
	cfg := env.Config
	cfg.Logger = env.log()
	h, err := heap.New(cfg, initial)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		for _, r := range h.Regions() {
			if err := region.Release(r.Base, r.Len); err != nil {
				env.log().Warn("release region", "base", r.Base, "err", err)
			}
		}
	}
	return h, release, nil
}

func dump(env Env, h *heap.Heap) {
	_ = report.Text(env.out(), h)
}

// firstCapacity 返回链头块的容量，即初始 region 全部可用的字节数。
func firstCapacity(h *heap.Heap) uint64 {
	for b := range h.Blocks() {
		return b.Capacity
	}
	return 0
}

func header(p uintptr) block.Block { return block.FromPayload(p) }
