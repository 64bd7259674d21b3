package localstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"authorsite/api/internal/broadcast"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 150 * time.Millisecond

// Watcher turns changes to the KV directory made by other processes (or by this one)
// into broadcast events, one per key after a quiet period.
type Watcher struct {
	dir      string
	bus      *broadcast.Bus
	logger   *zap.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(dir string, bus *broadcast.Bus, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		bus:      bus,
		logger:   logger,
		debounce: defaultDebounce,
		fs:       fw,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// SetDebounce changes the quiet period. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run watches until ctx is cancelled, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key, ok := keyOf(filepath.Base(event.Name))
			if !ok {
				continue
			}
			w.schedule(key)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("data dir watcher error", zap.String("dir", w.dir), zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[key]; ok {
		timer.Stop()
	}
	w.timers[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()
		w.bus.Publish(broadcast.Event{Key: key, Source: broadcast.SourceFile})
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for key, timer := range w.timers {
		timer.Stop()
		delete(w.timers, key)
	}
	w.mu.Unlock()
	if err := w.fs.Close(); err != nil {
		w.logger.Warn("close data dir watcher", zap.Error(err))
	}
}
