package am

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// FileWatcher watches a single file and calls the registered callbacks,
// debounced, after it is written or replaced. Editors commonly replace the
// file, so the parent directory is watched and events filtered by name.
type FileWatcher struct {
	path           string
	watcher        *fsnotify.Watcher
	logger         *zap.SugaredLogger
	mu             sync.Mutex
	callbacks      []func(path string) error
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, logger *zap.SugaredLogger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", filepath.Dir(abs))
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileWatcher{
		path:           abs,
		watcher:        w,
		logger:         logger,
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}, nil
}

// SetDebounce overrides the debounce period (default 500ms).
func (fw *FileWatcher) SetDebounce(d time.Duration) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.debouncePeriod = d
}

// OnChange registers a callback invoked with the watched path.
func (fw *FileWatcher) OnChange(cb func(path string) error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.callbacks = append(fw.callbacks, cb)
}

// Start begins watching in a background goroutine.
func (fw *FileWatcher) Start() {
	go fw.loop()
}

// Stop stops watching.
func (fw *FileWatcher) Stop() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}

func (fw *FileWatcher) loop() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.logger.Debugw("Watched file changed", "file", event.Name, "op", event.Op.String(), "symbol", sym.AM)
			fw.schedule()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warnw("File watcher error", "error", err, "symbol", sym.AM)
		}
	}
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
	}
	fw.debounceTimer = time.AfterFunc(fw.debouncePeriod, fw.fire)
}

func (fw *FileWatcher) fire() {
	fw.mu.Lock()
	callbacks := append([]func(string) error(nil), fw.callbacks...)
	fw.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(fw.path); err != nil {
			fw.logger.Warnw("Reload callback failed", "file", fw.path, "error", err, "symbol", sym.AM)
		}
	}
}
