package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/credstore"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounceInterval coalesces the two entry writes of one login.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watcher refreshes a Manager when another process changes the file store.
type Watcher struct {
	manager  *Manager
	dir      string
	debounce time.Duration

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	timer     *time.Timer
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewWatcher creates a Watcher for the credential files in dir.
func NewWatcher(manager *Manager, dir string) *Watcher {
	return &Watcher{
		manager:  manager,
		dir:      dir,
		debounce: DefaultDebounceInterval,
	}
}

// Start begins watching. It is a no-op if the watcher is already running.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsWatcher != nil {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	// Capture channels before releasing lock to avoid races with Stop
	go w.processEvents(fsWatcher.Events, fsWatcher.Errors, w.stopCh, w.doneCh)

	logger.Debug("Watching credential directory", zap.String("dir", w.dir))
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.fsWatcher == nil {
		w.mu.Unlock()
		return nil
	}
	fsWatcher, stopCh, doneCh := w.fsWatcher, w.stopCh, w.doneCh
	w.fsWatcher = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	close(stopCh)
	err := fsWatcher.Close()
	<-doneCh
	return err
}

func (w *Watcher) processEvents(events <-chan fsnotify.Event, errs <-chan error, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			logger.Warn("Credential watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if name != credstore.FileName(constants.TokenKey) && name != credstore.FileName(constants.ProfileKey) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.triggerRefreshDebounced()
}

func (w *Watcher) triggerRefreshDebounced() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsWatcher == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.manager.Refresh(context.Background())
	})
}
