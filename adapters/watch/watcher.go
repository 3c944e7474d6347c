// Package watch re-exports a deck when files in its directory change.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-deck-export/export"
)

// DefaultDebounce is the quiet period after the last change before a re-export.
const DefaultDebounce = 300 * time.Millisecond

const tickInterval = 50 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Ignore reports paths whose events never trigger a run.
	Ignore func(path string) bool
	Logger export.Logger
}

// Watcher runs a callback after a burst of changes in a directory settles.
// Runs never overlap; changes seen during a run schedule one more run.
type Watcher struct {
	dir      string
	onChange func(ctx context.Context) error
	opts     Options

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending bool
	last    time.Time
	runs    int
}

// NewWatcher starts watching dir. Call Run to process events and Close when done.
func NewWatcher(dir string, onChange func(ctx context.Context) error, opts Options) (*Watcher, error) {
	if onChange == nil {
		return nil, export.NewError(export.KindValidation, "watch callback is required", nil)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = export.NopLogger{}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, export.NewError(export.KindValidation, "resolve watch directory", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, export.NewError(export.KindEnvironment, "create file watcher", err)
	}
	if err := fw.Add(abs); err != nil {
		_ = fw.Close()
		return nil, export.NewError(export.KindNotFound, "watch "+abs, err)
	}

	return &Watcher{dir: abs, onChange: onChange, opts: opts, watcher: fw}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Runs returns how many times the callback ran.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Run processes events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Errorf("watch %s: %v", w.dir, err)

		case <-ticker.C:
			if w.due() {
				w.trigger(ctx)
			}
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	if w.ignored(event.Name) {
		return
	}
	w.opts.Logger.Debugf("watch: %s %s", event.Op, event.Name)

	w.mu.Lock()
	w.pending = true
	w.last = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) due() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending || time.Since(w.last) < w.opts.Debounce {
		return false
	}
	w.pending = false
	return true
}

func (w *Watcher) trigger(ctx context.Context) {
	w.mu.Lock()
	w.runs++
	w.mu.Unlock()

	if err := w.onChange(ctx); err != nil {
		w.opts.Logger.Errorf("watch: export failed (%s): %v", export.KindFromError(err), err)
	}
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return true
	}
	return w.opts.Ignore != nil && w.opts.Ignore(path)
}

// IgnorePaths ignores events for the given files, such as the export output.
func IgnorePaths(paths ...string) func(string) bool {
	set := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			set[abs] = struct{}{}
		}
	}
	return func(path string) bool {
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		_, ok := set[abs]
		return ok
	}
}
