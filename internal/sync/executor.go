package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the transfer worker pool.
const DefaultConcurrency = 4

// ExecOptions configure one plan execution.
type ExecOptions struct {
	// DryRun reports what would happen without mutating anything, local
	// or remote.
	DryRun bool

	// Concurrency is the worker pool size. Zero means DefaultConcurrency.
	Concurrency int

	Retry RetryPolicy
}

// Executor runs reconciliation plans against the remote store and the
// local cache. It is the only component that mutates the cache index, and
// it does so strictly after an action completes.
type Executor struct {
	store    RemoteStore
	index    *cache.Index
	cacheDir string
}

// RemoteStore is the transfer subset of remote.Store the executor needs,
// narrowed so tests can inject failing fakes.
type RemoteStore interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Put(ctx context.Context, path string, body io.Reader, size int64) (*remote.Entry, error)
	Delete(ctx context.Context, path string) error
}

func NewExecutor(store RemoteStore, index *cache.Index, cacheDir string) *Executor {
	return &Executor{
		store:    store,
		index:    index,
		cacheDir: cacheDir,
	}
}

// Execute runs every action in the plan. Actions target distinct paths by
// construction, so they run independently on a bounded worker pool; one
// failure never aborts its siblings. The returned results are in plan
// order.
func (e *Executor) Execute(ctx context.Context, plan *Plan, opts ExecOptions) []*Result {
	if opts.DryRun {
		return e.dryRun(plan)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*Result, len(plan.Actions))

	g := &errgroup.Group{}
	g.SetLimit(concurrency)

	for i, action := range plan.Actions {
		i, action := i, action
		g.Go(func() error {
			results[i] = e.runAction(ctx, action, opts.Retry)
			return nil
		})
	}
	g.Wait()

	// stale index rows: file gone on both sides, drop the record
	for _, path := range plan.Cleanups {
		if err := e.index.Remove(path); err != nil {
			slog.Error("index cleanup failed", "path", path, "error", err)
		}
	}

	return results
}

func (e *Executor) dryRun(plan *Plan) []*Result {
	results := make([]*Result, len(plan.Actions))
	for i, action := range plan.Actions {
		results[i] = &Result{Path: action.Path, Kind: action.Kind, Outcome: OutcomeSkippedDryRun}
	}
	return results
}

func (e *Executor) runAction(ctx context.Context, action *Action, retry RetryPolicy) *Result {
	result := &Result{Path: action.Path, Kind: action.Kind}

	if err := ctx.Err(); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	var err error
	switch action.Kind {
	case ActionSkip:
		result.Outcome = OutcomeSuccess
		return result

	case ActionConflict:
		e.markConflict(action)
		result.Outcome = OutcomeConflict
		return result

	case ActionUpload:
		err = retry.withRetry(ctx, action.Path, func() error {
			return e.upload(ctx, action)
		})
		if err != nil {
			// keep the intent on record so a later remote deletion can't
			// silently discard this change
			e.markPendingUpload(action)
		}

	case ActionDownload:
		err = retry.withRetry(ctx, action.Path, func() error {
			return e.download(ctx, action)
		})

	case ActionDeleteLocal:
		err = e.deleteLocal(action)

	case ActionDeleteRemote:
		err = retry.withRetry(ctx, action.Path, func() error {
			return e.deleteRemote(ctx, action)
		})

	default:
		err = fmt.Errorf("unknown action kind %q", action.Kind)
	}

	if err != nil {
		slog.Error("sync action failed", "op", action.Kind, "path", action.Path, "error", err)
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	result.Outcome = OutcomeSuccess
	return result
}

// upload sends the local file and records it as synced.
func (e *Executor) upload(ctx context.Context, action *Action) error {
	localPath := e.localPath(action.Path)

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}

	entry, err := e.store.Put(ctx, action.Path, file, info.Size())
	if err != nil {
		return fmt.Errorf("put %s: %w", action.Path, err)
	}

	if err := e.index.Set(&cache.Entry{
		Path:        action.Path,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Fingerprint: entry.ETag,
		State:       cache.StateSynced,
	}); err != nil {
		return fmt.Errorf("index update after upload: %w", err)
	}

	slog.Info("sync", "op", ActionUpload, "path", action.Path, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}

// download stages the remote object to a temp file and renames it into
// place, so an interrupted transfer never leaves a torn file in the cache.
// The index is updated only after the rename succeeds.
func (e *Executor) download(ctx context.Context, action *Action) error {
	body, err := e.store.Get(ctx, action.Path)
	if err != nil {
		return fmt.Errorf("get %s: %w", action.Path, err)
	}
	defer body.Close()

	localPath := e.localPath(action.Path)
	if err := utils.EnsureParent(localPath); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".bancodwg-*")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	// keep the local mtime aligned with the remote timestamp so the next
	// scan compares cleanly
	if rem := action.Remote; rem != nil && !rem.LastModified.IsZero() {
		if err := os.Chtimes(tmpPath, rem.LastModified, rem.LastModified); err != nil {
			slog.Warn("failed to set mtime on download", "path", action.Path, "error", err)
		}
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		return fmt.Errorf("move into cache: %w", err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}

	fingerprint := ""
	if action.Remote != nil {
		fingerprint = action.Remote.ETag
	}

	if err := e.index.Set(&cache.Entry{
		Path:        action.Path,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Fingerprint: fingerprint,
		State:       cache.StateSynced,
	}); err != nil {
		return fmt.Errorf("index update after download: %w", err)
	}

	slog.Info("sync", "op", ActionDownload, "path", action.Path, "size", humanize.Bytes(uint64(size)))
	return nil
}

func (e *Executor) deleteLocal(action *Action) error {
	localPath := e.localPath(action.Path)

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove local file: %w", err)
	}
	if err := e.index.Remove(action.Path); err != nil {
		return fmt.Errorf("index remove after local delete: %w", err)
	}

	slog.Info("sync", "op", ActionDeleteLocal, "path", action.Path)
	return nil
}

func (e *Executor) deleteRemote(ctx context.Context, action *Action) error {
	if err := e.store.Delete(ctx, action.Path); err != nil {
		return fmt.Errorf("delete %s: %w", action.Path, err)
	}
	if err := e.index.Remove(action.Path); err != nil {
		return fmt.Errorf("index remove after remote delete: %w", err)
	}

	slog.Info("sync", "op", ActionDeleteRemote, "path", action.Path)
	return nil
}

// markConflict records the stalemate in the index so it keeps surfacing
// until someone resolves it. Recording a decision is not a transfer, so
// the update-after-success rule does not apply.
func (e *Executor) markConflict(action *Action) {
	entry := &cache.Entry{
		Path:  action.Path,
		State: cache.StateConflict,
	}
	if local := action.Local; local != nil {
		entry.Size = local.Size
		entry.ModTime = local.ModTime
		entry.Fingerprint = local.Fingerprint
	} else if idx := action.Indexed; idx != nil {
		entry.Size = idx.Size
		entry.ModTime = idx.ModTime
		entry.Fingerprint = idx.Fingerprint
	}

	if err := e.index.Set(entry); err != nil {
		slog.Error("failed to record conflict", "path", action.Path, "error", err)
		return
	}
	slog.Warn("sync conflict, manual resolution required", "path", action.Path, "reason", action.Reason)
}

func (e *Executor) markPendingUpload(action *Action) {
	entry := &cache.Entry{
		Path:  action.Path,
		State: cache.StatePendingUpload,
	}
	if local := action.Local; local != nil {
		entry.Size = local.Size
		entry.ModTime = local.ModTime
		entry.Fingerprint = local.Fingerprint
	}
	if err := e.index.Set(entry); err != nil {
		slog.Error("failed to record pending upload", "path", action.Path, "error", err)
	}
}

func (e *Executor) localPath(relPath string) string {
	return filepath.Join(e.cacheDir, filepath.FromSlash(relPath))
}
