// Package app wires the BancoDWG client together: configuration, the
// credential store, the remote bucket, the local cache and the sync
// engine. Every sync entry point is gated on a valid session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/EduardoaMelegari/banco-projetos/internal/auth"
	"github.com/EduardoaMelegari/banco-projetos/internal/cache"
	"github.com/EduardoaMelegari/banco-projetos/internal/config"
	"github.com/EduardoaMelegari/banco-projetos/internal/remote"
	"github.com/EduardoaMelegari/banco-projetos/internal/sync"
	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// Cache-dir internals. Dotfiles, so the scanner never picks them up.
const (
	indexFileName = ".bancodwg.db"
	lockFileName  = ".bancodwg.lock"
)

var ErrCacheLocked = errors.New("cache dir is locked by another instance")

// App is the assembled client. Construct with New, authenticate with
// Login, then Start a daemon or RunSync a one-shot cycle.
type App struct {
	config *config.Config
	users  *auth.Store
	auth   *auth.Authenticator
	store  remote.Store
	index  *cache.Index
	engine *sync.Engine
	lock   *flock.Flock

	opened bool
}

// New builds an app backed by the configured S3 bucket.
func New(cfg *config.Config) (*App, error) {
	store, err := remote.NewS3Store(context.Background(), &remote.S3Config{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to bucket: %w", err)
	}
	return NewWithStore(cfg, store)
}

// NewWithStore builds an app against an injected remote store.
func NewWithStore(cfg *config.Config, store remote.Store) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	users, err := auth.OpenStore(cfg.UsersFile)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}

	if err := utils.EnsureDir(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("ensure cache dir: %w", err)
	}

	index := cache.NewIndex(filepath.Join(cfg.CacheDir, indexFileName))
	scanner := cache.NewScanner(cfg.CacheDir, cache.NewIgnoreList(cfg.CacheDir))

	engine := sync.NewEngine(store, index, scanner, cfg.CacheDir, sync.EngineOptions{
		Interval:    cfg.SyncInterval(),
		SyncOnStart: cfg.AutoSyncOnStart,
		Concurrency: cfg.Concurrency,
		Retry:       sync.DefaultRetryPolicy(),
		Diff:        sync.DiffOptions{ResurrectPendingUploads: cfg.ResurrectPendingUploads},
	})

	return &App{
		config: cfg,
		users:  users,
		auth:   auth.NewAuthenticator(users, auth.DefaultSessionTTL),
		store:  store,
		index:  index,
		engine: engine,
		lock:   flock.New(filepath.Join(cfg.CacheDir, lockFileName)),
	}, nil
}

// Login authenticates against the user store and returns a session
// token for the sync entry points.
func (a *App) Login(username, password string) (*auth.Session, error) {
	return a.auth.Login(username, password)
}

func (a *App) Logout(token string) {
	a.auth.Logout(token)
}

// Users exposes the account store for admin commands.
func (a *App) Users() *auth.Store {
	return a.users
}

// RunSync executes one reconciliation cycle. The token must belong to a
// live session; dry runs report the plan without touching anything.
func (a *App) RunSync(ctx context.Context, token string, dryRun bool) (*sync.Report, error) {
	if _, err := a.auth.Validate(token); err != nil {
		return nil, err
	}
	if err := a.open(); err != nil {
		return nil, err
	}
	return a.engine.RunCycle(ctx, dryRun)
}

// Start runs the daemon until ctx is done: an initial cycle when
// configured, the interval loop, and the cache-dir watcher.
func (a *App) Start(ctx context.Context, token string) error {
	session, err := a.auth.Validate(token)
	if err != nil {
		return err
	}
	if err := a.open(); err != nil {
		return err
	}
	defer a.Close()

	slog.Info("bancodwg client start",
		"user", session.Username,
		"bucket", a.config.Bucket,
		"cacheDir", a.config.CacheDir,
		"interval", a.config.SyncInterval(),
	)

	if !a.config.AutoSyncOnStart {
		slog.Info("initial sync disabled")
	}

	watcher := sync.NewWatcher(a.config.CacheDir, a.engine)
	if err := watcher.Start(); err != nil {
		// degraded but functional: the interval loop still syncs
		slog.Warn("cache watcher unavailable, relying on interval sync", "error", err)
		watcher = nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return a.engine.Run(egCtx)
	})

	err = eg.Wait()
	if watcher != nil {
		watcher.Stop()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("bancodwg client stop")
	return nil
}

// open acquires the single-instance lock and opens the cache index.
// Idempotent.
func (a *App) open() error {
	if a.opened {
		return nil
	}

	locked, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", a.config.CacheDir, ErrCacheLocked)
	}

	if err := a.index.Open(); err != nil {
		a.lock.Unlock()
		return err
	}

	a.opened = true
	return nil
}

// Close releases the cache index and the instance lock.
func (a *App) Close() error {
	if !a.opened {
		return nil
	}
	a.opened = false

	err := a.index.Close()
	if unlockErr := a.lock.Unlock(); unlockErr != nil {
		slog.Warn("failed to release cache lock", "error", unlockErr)
	}
	return err
}
