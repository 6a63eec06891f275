package notification

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/aerodesk/aerodesk/internal/errors"
	"github.com/aerodesk/aerodesk/internal/logger"
)

// FileWatcher publishes a change signal when another process rewrites the
// file behind a FileStore. Writes made through the same store are matched
// by content and not signalled again.
type FileWatcher struct {
	store   *FileStore
	channel Channel
	logger  logger.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewFileWatcher creates a stopped watcher that publishes on channel.
func NewFileWatcher(store *FileStore, channel Channel, log logger.Logger) *FileWatcher {
	if log == nil {
		log = logger.Global().Module("notification.watch")
	}
	return &FileWatcher{store: store, channel: channel, logger: log}
}

// Start watches the store directory until ctx is done or Stop is called.
// The rename that replaces the file shows up as a create in its directory,
// so the directory is watched rather than the file.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategorySystem).
			Context("operation", "create_file_watcher").
			Build()
	}
	dir := filepath.Dir(w.store.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryFileIO).
			Context("operation", "watch_store_dir").
			Context("dir", dir).
			Build()
	}
	// Content present at startup is the baseline, not a change.
	if _, err := w.store.observe(); err != nil {
		w.logger.Warn("failed to read store baseline", logger.Error(err))
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.watcher = fw
	w.running = true
	w.wg.Go(func() { w.run(ctx, fw) })

	w.logger.Info("watching store file for external changes",
		logger.String("path", w.store.Path()))
	return nil
}

// Stop ends the watch and waits for the worker to exit.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	fw := w.watcher
	w.mu.Unlock()

	w.wg.Wait()
	if err := fw.Close(); err != nil {
		w.logger.Debug("error closing file watcher", logger.Error(err))
	}
}

func (w *FileWatcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	name := filepath.Base(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			w.check(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", logger.Error(err))
		}
	}
}

func (w *FileWatcher) check(ctx context.Context) {
	changed, err := w.store.observe()
	if err != nil {
		w.logger.Warn("failed to read changed store file", logger.Error(err))
		return
	}
	if !changed {
		return
	}
	w.logger.Debug("store file changed by another process",
		logger.String("path", w.store.Path()))
	w.channel.Publish(ctx)
}
