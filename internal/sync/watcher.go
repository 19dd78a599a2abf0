package sync

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	watcherBufferSize      = 64
	defaultDebounceTimeout = 500 * time.Millisecond
)

// Watcher observes the cache directory and nudges the engine when local
// files change, so edits reach the bucket ahead of the next timer tick.
// Events are debounced: editors fire bursts of writes per save.
type Watcher struct {
	watchDir string
	engine   *Engine
	events   chan notify.EventInfo
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
	wg    sync.WaitGroup
}

func NewWatcher(watchDir string, engine *Engine) *Watcher {
	return &Watcher{
		watchDir: watchDir,
		engine:   engine,
		events:   make(chan notify.EventInfo, watcherBufferSize),
		debounce: defaultDebounceTimeout,
		done:     make(chan struct{}),
	}
}

func (w *Watcher) Start() error {
	// "..." watches recursively
	if err := notify.Watch(filepath.Join(w.watchDir, "..."), w.events, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()

	slog.Debug("watching cache dir", "path", w.watchDir)
	return nil
}

func (w *Watcher) Stop() {
	close(w.done)
	notify.Stop(w.events)
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.events:
			if !ok {
				return
			}
			slog.Debug("fs event", "path", event.Path(), "event", event.Event())
			w.scheduleNudge()
		}
	}
}

// scheduleNudge resets the debounce window; the engine is nudged once the
// filesystem goes quiet.
func (w *Watcher) scheduleNudge() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.engine.Nudge)
}
