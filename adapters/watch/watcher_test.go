package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	trackerbun "github.com/goliatone/go-deck-export/adapters/tracker/bun"
	"github.com/goliatone/go-deck-export/export"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, dir string, onChange func(ctx context.Context) error, opts Options) (*Watcher, context.CancelFunc) {
	t.Helper()
	w, err := NewWatcher(dir, onChange, opts)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run: %v", err)
		}
		_ = w.Close()
	})
	return w, cancel
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	w, _ := startWatcher(t, dir, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, Options{Debounce: 150 * time.Millisecond})

	source := filepath.Join(dir, "presentation.html")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(source, []byte("<html>"+string(rune('a'+i))+"</html>"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	waitFor(t, 3*time.Second, func() bool { return calls.Load() >= 1 })
	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one debounced run, got %d", got)
	}
	if w.Runs() != 1 {
		t.Fatalf("expected Runs()=1, got %d", w.Runs())
	}
}

func TestWatcher_IgnoresOutputAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "presentation.pdf")
	var calls atomic.Int32
	startWatcher(t, dir, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, Options{Debounce: 50 * time.Millisecond, Ignore: IgnorePaths(output)})

	if err := os.WriteFile(output, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".deck-export-123"), []byte("tmp"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected ignored writes, got %d runs", got)
	}
}

func TestWatcher_HistoryWritesDoNotRetrigger(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "presentation.html")
	output := filepath.Join(dir, "presentation.pdf")
	history := filepath.Join(dir, "history.db")

	ctx := context.Background()
	tracker, err := trackerbun.OpenSQLite(ctx, history)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = tracker.Close() })

	var calls atomic.Int32
	ignore := IgnorePaths(append([]string{output}, trackerbun.DatabaseFiles(history)...)...)
	startWatcher(t, dir, func(ctx context.Context) error {
		n := calls.Add(1)
		id := "run-" + string(rune('a'+n))
		if _, err := tracker.Start(ctx, export.RunRecord{ID: id, Source: source, Output: output}); err != nil {
			return err
		}
		if err := os.WriteFile(output, []byte("%PDF"), 0o644); err != nil {
			return err
		}
		return tracker.Complete(ctx, id, export.Result{Slides: 1, Pages: 1})
	}, Options{Debounce: 50 * time.Millisecond, Ignore: ignore})

	if err := os.WriteFile(source, []byte("<html>1</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return calls.Load() >= 1 })
	time.Sleep(time.Second)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one run for one edit, got %d", got)
	}
}

func TestWatcher_RunsAgainAfterLaterChange(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "presentation.html")
	var calls atomic.Int32
	startWatcher(t, dir, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, Options{Debounce: 50 * time.Millisecond})

	if err := os.WriteFile(source, []byte("<html>1</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return calls.Load() == 1 })

	if err := os.WriteFile(source, []byte("<html>2</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return calls.Load() == 2 })
}

func TestNewWatcher_Errors(t *testing.T) {
	if _, err := NewWatcher(t.TempDir(), nil, Options{}); err == nil {
		t.Fatalf("expected callback error")
	}
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), func(context.Context) error { return nil }, Options{})
	if err == nil {
		t.Fatalf("expected missing directory error")
	}
}
