package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestIndex(t *testing.T) *cache.Index {
	t.Helper()
	ix := cache.NewIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, ix.Open())
	t.Cleanup(func() { ix.Close() })
	return ix
}

// flakyStore fails a configured number of operations per path before
// delegating to the in-memory store.
type flakyStore struct {
	inner *remote.MemStore

	mu          sync.Mutex
	putFailures map[string]int
	getFailures map[string]int
	calls       map[string]int
}

func newFlakyStore(inner *remote.MemStore) *flakyStore {
	return &flakyStore{
		inner:       inner,
		putFailures: make(map[string]int),
		getFailures: make(map[string]int),
		calls:       make(map[string]int),
	}
}

func (f *flakyStore) take(failures map[string]int, op, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op+":"+path]++
	if failures[path] > 0 {
		failures[path]--
		return true
	}
	return false
}

func (f *flakyStore) callCount(op, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+path]
}

func (f *flakyStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.take(f.getFailures, "get", path) {
		return nil, fmt.Errorf("injected outage: %w", remote.ErrUnavailable)
	}
	return f.inner.Get(ctx, path)
}

func (f *flakyStore) Put(ctx context.Context, path string, body io.Reader, size int64) (*remote.Entry, error) {
	if f.take(f.putFailures, "put", path) {
		return nil, fmt.Errorf("injected outage: %w", remote.ErrUnavailable)
	}
	return f.inner.Put(ctx, path, body, size)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	return f.inner.Delete(ctx, path)
}

func TestExecutor_DryRunMutatesNothing(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemStore()
	store.Seed("down.dwg", []byte("remote"), baseTime)
	index := newTestIndex(t)
	cacheDir := t.TempDir()
	writeLocal(t, cacheDir, "up.dwg", "local")

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{
		{Path: "up.dwg", Kind: ActionUpload},
		{Path: "down.dwg", Kind: ActionDownload},
		{Path: "up.dwg", Kind: ActionSkip},
	}}

	results := exec.Execute(ctx, plan, ExecOptions{DryRun: true, Retry: testRetry()})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, OutcomeSkippedDryRun, r.Outcome)
	}

	// nothing moved: no upload happened, no file downloaded, index empty
	assert.Equal(t, 1, store.Len())
	assert.NoFileExists(t, filepath.Join(cacheDir, "down.dwg"))
	count, err := index.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestExecutor_UploadRecordsSyncedEntry(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemStore()
	index := newTestIndex(t)
	cacheDir := t.TempDir()
	writeLocal(t, cacheDir, "drawings/a.dwg", "content-a")

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{{Path: "drawings/a.dwg", Kind: ActionUpload}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)

	exists, err := store.Exists(ctx, "drawings/a.dwg")
	require.NoError(t, err)
	assert.True(t, exists)

	entry, err := index.Get("drawings/a.dwg")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, cache.StateSynced, entry.State)
	assert.NotEmpty(t, entry.Fingerprint)
}

func TestExecutor_DownloadStagesAndRecords(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemStore()
	store.Seed("drawings/a.dwg", []byte("remote-content"), baseTime)
	index := newTestIndex(t)
	cacheDir := t.TempDir()

	remoteEntries, err := store.List(ctx)
	require.NoError(t, err)

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{{
		Path:   "drawings/a.dwg",
		Kind:   ActionDownload,
		Remote: remoteEntries[0],
	}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)

	data, err := os.ReadFile(filepath.Join(cacheDir, "drawings", "a.dwg"))
	require.NoError(t, err)
	assert.Equal(t, "remote-content", string(data))

	// no staging leftovers
	leftovers, err := filepath.Glob(filepath.Join(cacheDir, "drawings", ".bancodwg-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	entry, err := index.Get("drawings/a.dwg")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, cache.StateSynced, entry.State)
	assert.Equal(t, remoteEntries[0].ETag, entry.Fingerprint)
}

func TestExecutor_DeleteLocalRemovesFileAndIndexRow(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	cacheDir := t.TempDir()
	writeLocal(t, cacheDir, "a.dwg", "stale")
	require.NoError(t, index.Set(&cache.Entry{Path: "a.dwg", ModTime: baseTime, Fingerprint: "f1", State: cache.StateSynced}))

	exec := NewExecutor(remote.NewMemStore(), index, cacheDir)
	plan := &Plan{Actions: []*Action{{Path: "a.dwg", Kind: ActionDeleteLocal}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)

	assert.NoFileExists(t, filepath.Join(cacheDir, "a.dwg"))
	entry, err := index.Get("a.dwg")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestExecutor_DeleteRemoteRemovesObjectAndIndexRow(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemStore()
	store.Seed("a.dwg", []byte("x"), baseTime)
	index := newTestIndex(t)
	require.NoError(t, index.Set(&cache.Entry{Path: "a.dwg", ModTime: baseTime, Fingerprint: "f1", State: cache.StateSynced}))

	exec := NewExecutor(store, index, t.TempDir())
	plan := &Plan{Actions: []*Action{{Path: "a.dwg", Kind: ActionDeleteRemote}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)

	assert.Zero(t, store.Len())
	entry, err := index.Get("a.dwg")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestExecutor_RetriesTransientFailuresThenSucceeds(t *testing.T) {
	ctx := context.Background()
	inner := remote.NewMemStore()
	store := newFlakyStore(inner)
	store.putFailures["a.dwg"] = 2 // fail twice, succeed on the third

	index := newTestIndex(t)
	cacheDir := t.TempDir()
	writeLocal(t, cacheDir, "a.dwg", "content")

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{{Path: "a.dwg", Kind: ActionUpload}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeSuccess, results[0].Outcome)
	assert.Equal(t, 3, store.callCount("put", "a.dwg"))

	entry, err := index.Get("a.dwg")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, cache.StateSynced, entry.State)
}

func TestExecutor_FailedActionDoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	inner := remote.NewMemStore()
	store := newFlakyStore(inner)
	store.putFailures["bad.dwg"] = 99 // beyond the retry budget

	index := newTestIndex(t)
	cacheDir := t.TempDir()
	writeLocal(t, cacheDir, "bad.dwg", "doomed")
	writeLocal(t, cacheDir, "good.dwg", "fine")

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{
		{Path: "bad.dwg", Kind: ActionUpload, Local: &cache.FileInfo{Path: "bad.dwg", Size: 6, ModTime: baseTime, Fingerprint: "fp"}},
		{Path: "good.dwg", Kind: ActionUpload},
	}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	byPath := map[string]*Result{}
	for _, r := range results {
		byPath[r.Path] = r
	}

	assert.Equal(t, OutcomeFailed, byPath["bad.dwg"].Outcome)
	assert.ErrorIs(t, byPath["bad.dwg"].Err, remote.ErrUnavailable)
	assert.Equal(t, OutcomeSuccess, byPath["good.dwg"].Outcome)

	// the index reflects exactly what completed: the failed upload is
	// recorded as still pending, the good one as synced
	bad, err := index.Get("bad.dwg")
	require.NoError(t, err)
	require.NotNil(t, bad)
	assert.Equal(t, cache.StatePendingUpload, bad.State)

	good, err := index.Get("good.dwg")
	require.NoError(t, err)
	require.NotNil(t, good)
	assert.Equal(t, cache.StateSynced, good.State)

	summary := Summarize(results)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestExecutor_CancelledContextLeavesIndexUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := remote.NewMemStore()
	store.Seed("a.dwg", []byte("remote"), baseTime)
	index := newTestIndex(t)
	cacheDir := t.TempDir()

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{{Path: "a.dwg", Kind: ActionDownload}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeFailed, results[0].Outcome)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoFileExists(t, filepath.Join(cacheDir, "a.dwg"))
}

func TestExecutor_ConflictIsRecordedNotTransferred(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemStore()
	store.Seed("a.dwg", []byte("remote"), baseTime)
	index := newTestIndex(t)
	cacheDir := t.TempDir()
	writeLocal(t, cacheDir, "a.dwg", "local")

	exec := NewExecutor(store, index, cacheDir)
	plan := &Plan{Actions: []*Action{{
		Path:   "a.dwg",
		Kind:   ActionConflict,
		Reason: "diverged, timestamps equal",
		Local:  &cache.FileInfo{Path: "a.dwg", Size: 5, ModTime: baseTime, Fingerprint: "lf"},
	}}}

	results := exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})
	require.Equal(t, OutcomeConflict, results[0].Outcome)

	// neither side overwritten
	data, err := os.ReadFile(filepath.Join(cacheDir, "a.dwg"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))

	rc, err := store.Get(ctx, "a.dwg")
	require.NoError(t, err)
	remoteData, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "remote", string(remoteData))

	entry, err := index.Get("a.dwg")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, cache.StateConflict, entry.State)
}

func TestExecutor_CleanupsDropStaleIndexRows(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)
	require.NoError(t, index.Set(&cache.Entry{Path: "gone.dwg", ModTime: baseTime, Fingerprint: "f1", State: cache.StateSynced}))

	exec := NewExecutor(remote.NewMemStore(), index, t.TempDir())
	plan := &Plan{Cleanups: []string{"gone.dwg"}}

	exec.Execute(ctx, plan, ExecOptions{Retry: testRetry()})

	count, err := index.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func writeLocal(t *testing.T, cacheDir, rel, content string) {
	t.Helper()
	path := filepath.Join(cacheDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSummarize(t *testing.T) {
	results := []*Result{
		{Kind: ActionUpload, Outcome: OutcomeSuccess},
		{Kind: ActionSkip, Outcome: OutcomeSuccess},
		{Kind: ActionDownload, Outcome: OutcomeFailed, Err: fmt.Errorf("boom")},
		{Kind: ActionConflict, Outcome: OutcomeConflict},
		{Kind: ActionUpload, Outcome: OutcomeSkippedDryRun},
	}
	s := Summarize(results)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Conflicts)
	assert.Equal(t, 1, s.DryRun)
}
