package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/auth"
	"github.com/EduardoaMelegari/banco-projetos/internal/config"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
	syncpkg "github.com/EduardoaMelegari/banco-projetos/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*App, *remote.MemStore, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Bucket = "banco-dwg"
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.UsersFile = filepath.Join(dir, "users.json")
	cfg.SyncIntervalSeconds = 0

	store := remote.NewMemStore()
	a, err := NewWithStore(cfg, store)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, store, cfg.CacheDir
}

func login(t *testing.T, a *App) string {
	t.Helper()
	session, err := a.Login(auth.DefaultAdminUser, auth.DefaultAdminPassword)
	require.NoError(t, err)
	return session.Token
}

func TestApp_RunSyncRequiresSession(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, err := a.RunSync(context.Background(), "bogus-token", false)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestApp_RunSyncDownloadsBucketContents(t *testing.T) {
	a, store, cacheDir := newTestApp(t)
	store.Seed("plans/site.dwg", []byte("drawing"), sampleTime)
	token := login(t, a)

	report, err := a.RunSync(context.Background(), token, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Succeeded)

	data, err := os.ReadFile(filepath.Join(cacheDir, "plans", "site.dwg"))
	require.NoError(t, err)
	assert.Equal(t, "drawing", string(data))
}

func TestApp_RunSyncDryRunLeavesCacheEmpty(t *testing.T) {
	a, store, cacheDir := newTestApp(t)
	store.Seed("a.dwg", []byte("x"), sampleTime)
	token := login(t, a)

	report, err := a.RunSync(context.Background(), token, true)
	require.NoError(t, err)
	require.Len(t, report.Plan.Actions, 1)
	assert.Equal(t, syncpkg.ActionDownload, report.Plan.Actions[0].Kind)
	assert.NoFileExists(t, filepath.Join(cacheDir, "a.dwg"))
}

func TestApp_LogoutInvalidatesToken(t *testing.T) {
	a, _, _ := newTestApp(t)
	token := login(t, a)

	a.Logout(token)

	_, err := a.RunSync(context.Background(), token, false)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestApp_SecondInstanceIsLockedOut(t *testing.T) {
	a, store, _ := newTestApp(t)
	token := login(t, a)
	_, err := a.RunSync(context.Background(), token, false)
	require.NoError(t, err)

	second, err := NewWithStore(a.config, store)
	require.NoError(t, err)
	defer second.Close()
	secondToken := login(t, second)

	_, err = second.RunSync(context.Background(), secondToken, false)
	assert.ErrorIs(t, err, ErrCacheLocked)
}

func TestApp_IndexFilesAreInvisibleToSync(t *testing.T) {
	a, store, _ := newTestApp(t)
	token := login(t, a)

	_, err := a.RunSync(context.Background(), token, false)
	require.NoError(t, err)

	// a cycle creates the index and lock files inside the cache dir; a
	// second cycle must not try to upload them
	report, err := a.RunSync(context.Background(), token, false)
	require.NoError(t, err)
	assert.Empty(t, report.Plan.Actions)
	assert.Zero(t, store.Len())
}
