package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
)

var ErrSyncAlreadyRunning = errors.New("sync already running")

// EngineOptions configure reconciliation behavior across cycles.
type EngineOptions struct {
	// Interval between automatic cycles. Zero disables the timer loop.
	Interval time.Duration

	// SyncOnStart makes Run perform a cycle immediately instead of waiting
	// for the first tick or nudge.
	SyncOnStart bool

	Concurrency int
	Retry       RetryPolicy
	Diff        DiffOptions
}

// Report is the outcome of one reconciliation cycle: the plan that was
// computed and what happened to each action. The plan doubles as the
// dry-run preview record.
type Report struct {
	Plan    *Plan
	Results []*Result
	Summary *Summary
}

// Engine drives reconciliation cycles: list remote, scan local, diff,
// execute. It is stateless between cycles except for the persisted index.
type Engine struct {
	store    remote.Store
	index    *cache.Index
	scanner  *cache.Scanner
	executor *Executor
	opts     EngineOptions

	muSync sync.Mutex
	nudge  chan struct{}
}

func NewEngine(store remote.Store, index *cache.Index, scanner *cache.Scanner, cacheDir string, opts EngineOptions) *Engine {
	return &Engine{
		store:    store,
		index:    index,
		scanner:  scanner,
		executor: NewExecutor(store, index, cacheDir),
		opts:     opts,
		nudge:    make(chan struct{}, 1),
	}
}

// RunCycle performs one full reconciliation. Overlapping invocations are
// rejected with ErrSyncAlreadyRunning. Planning failures (cannot list
// remote, cannot scan local) abort before any action executes.
func (e *Engine) RunCycle(ctx context.Context, dryRun bool) (*Report, error) {
	if !e.muSync.TryLock() {
		return nil, ErrSyncAlreadyRunning
	}
	defer e.muSync.Unlock()

	tStart := time.Now()

	remoteEntries, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote: %w", err)
	}

	localFiles, err := e.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan local: %w", err)
	}

	indexed, err := e.index.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot index: %w", err)
	}

	plan := BuildPlan(remoteEntries, localFiles, indexed, e.opts.Diff)

	results := e.executor.Execute(ctx, plan, ExecOptions{
		DryRun:      dryRun,
		Concurrency: e.opts.Concurrency,
		Retry:       e.opts.Retry,
	})
	summary := Summarize(results)

	if plan.HasChanges() {
		counts := plan.Counts()
		slog.Info("sync cycle",
			"dryRun", dryRun,
			"remote", len(remoteEntries),
			"local", len(localFiles),
			"uploads", counts[ActionUpload],
			"downloads", counts[ActionDownload],
			"localDeletes", counts[ActionDeleteLocal],
			"conflicts", counts[ActionConflict],
			"skips", counts[ActionSkip],
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"took", time.Since(tStart),
		)
	}

	return &Report{Plan: plan, Results: results, Summary: summary}, nil
}

// Nudge requests an extra cycle from the Run loop, e.g. after a watcher
// event. Coalesces when a request is already queued.
func (e *Engine) Nudge() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// Run executes cycles until ctx is done: one immediately when SyncOnStart
// is set, then on every interval tick or nudge. A timer rather than a
// ticker, so a slow cycle doesn't pile up queued runs.
func (e *Engine) Run(ctx context.Context) error {
	if e.opts.SyncOnStart {
		e.runLogged(ctx)
	}

	if e.opts.Interval <= 0 {
		slog.Info("auto sync disabled, waiting for nudges")
	}

	var timerC <-chan time.Time
	var timer *time.Timer
	if e.opts.Interval > 0 {
		timer = time.NewTimer(e.opts.Interval)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timerC:
			e.runLogged(ctx)
			timer.Reset(e.opts.Interval)
		case <-e.nudge:
			e.runLogged(ctx)
		}
	}
}

func (e *Engine) runLogged(ctx context.Context) {
	if _, err := e.RunCycle(ctx, false); err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, ErrSyncAlreadyRunning) {
		slog.Error("sync cycle failed", "error", err)
	}
}
