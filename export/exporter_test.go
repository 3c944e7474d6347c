package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSession struct {
	loadErr  error
	slides   int
	countErr error
	pdf      []byte
	printErr error

	loaded  LoadOptions
	printed PrintOptions
}

func (s *stubSession) Load(ctx context.Context, opts LoadOptions) error {
	s.loaded = opts
	return s.loadErr
}

func (s *stubSession) CountSlides(ctx context.Context, selector string) (int, error) {
	return s.slides, s.countErr
}

func (s *stubSession) Print(ctx context.Context, opts PrintOptions) ([]byte, error) {
	s.printed = opts
	return s.pdf, s.printErr
}

type stubEngine struct {
	session  *stubSession
	startErr error
	released int
	panics   bool
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Session(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	if e.startErr != nil {
		return e.startErr
	}
	defer func() { e.released++ }()
	return fn(ctx, e.session)
}

type memoryStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	putErr  error
	removed []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: map[string][]byte{}}
}

func (s *memoryStore) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	if s.putErr != nil {
		return 0, s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return int64(len(data)), nil
}

func (s *memoryStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	s.removed = append(s.removed, path)
	return nil
}

type stubInspector struct {
	report Report
	err    error
}

func (i stubInspector) Inspect(ctx context.Context, path string) (Report, error) {
	return i.report, i.err
}

type stubTracker struct {
	started   []RunRecord
	completed map[string]Result
	failed    map[string]error
}

func newStubTracker() *stubTracker {
	return &stubTracker{completed: map[string]Result{}, failed: map[string]error{}}
}

func (t *stubTracker) Start(ctx context.Context, record RunRecord) (string, error) {
	t.started = append(t.started, record)
	return record.ID, nil
}

func (t *stubTracker) Complete(ctx context.Context, id string, result Result) error {
	t.completed[id] = result
	return nil
}

func (t *stubTracker) Fail(ctx context.Context, id string, err error) error {
	t.failed[id] = err
	return nil
}

func (t *stubTracker) Status(ctx context.Context, id string) (RunRecord, error) {
	for _, record := range t.started {
		if record.ID == id {
			return record, nil
		}
	}
	return RunRecord{}, NewError(KindNotFound, "run not found", nil)
}

func (t *stubTracker) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	return t.started, nil
}

func writeSource(t *testing.T) (source, output string) {
	t.Helper()
	dir := t.TempDir()
	source = filepath.Join(dir, "presentation.html")
	if err := os.WriteFile(source, []byte("<html><body><div class=slide></div></body></html>"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return source, filepath.Join(dir, "presentation.pdf")
}

func slideReport(pages int) Report {
	report := Report{Pages: pages}
	for i := 0; i < pages; i++ {
		report.PageSizes = append(report.PageSizes, DefaultGeometry.Points())
	}
	return report
}

func newTestExporter(engine Engine, store ArtifactStore) *Exporter {
	exporter := NewExporter(engine, store)
	exporter.IDGenerator = func() string { return "run-1" }
	exporter.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return exporter
}

func TestExporter_ExportWritesArtifact(t *testing.T) {
	source, output := writeSource(t)
	session := &stubSession{slides: 10, pdf: []byte("%PDF-1.7 ten pages")}
	engine := &stubEngine{session: session}
	store := newMemoryStore()
	tracker := newStubTracker()

	exporter := newTestExporter(engine, store)
	exporter.Inspector = stubInspector{report: slideReport(10)}
	exporter.Tracker = tracker

	result, err := exporter.Export(context.Background(), Request{Source: source, Output: output, Verify: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.RunID != "run-1" || result.Engine != "stub" {
		t.Fatalf("unexpected run metadata: %+v", result)
	}
	if result.Slides != 10 || result.Pages != 10 {
		t.Fatalf("expected 10 slides/pages, got %d/%d", result.Slides, result.Pages)
	}
	if !bytes.Equal(store.files[output], session.pdf) {
		t.Fatalf("expected artifact stored at %s", output)
	}
	if engine.released != 1 {
		t.Fatalf("expected session released once, got %d", engine.released)
	}
	if session.loaded.URL != FileURL(source) {
		t.Fatalf("unexpected load url %q", session.loaded.URL)
	}
	if session.loaded.Geometry != DefaultGeometry || session.loaded.Timeout != DefaultNavigationTimeout {
		t.Fatalf("expected default load options, got %+v", session.loaded)
	}
	if !session.printed.PrintBackground || !session.printed.PreferCSSPageSize {
		t.Fatalf("expected backgrounds and css page size preferred, got %+v", session.printed)
	}
	if _, ok := tracker.completed["run-1"]; !ok {
		t.Fatalf("expected run recorded as completed")
	}
}

func TestExporter_EnvironmentErrorSkipsNavigation(t *testing.T) {
	source, output := writeSource(t)
	session := &stubSession{}
	engine := &stubEngine{session: session, startErr: NewError(KindEnvironment, "no browser", nil)}
	tracker := newStubTracker()

	exporter := newTestExporter(engine, newMemoryStore())
	exporter.Tracker = tracker

	_, err := exporter.Export(context.Background(), Request{Source: source, Output: output})
	if KindFromError(err) != KindEnvironment {
		t.Fatalf("expected environment error, got %v", err)
	}
	if session.loaded.URL != "" {
		t.Fatalf("navigation must not be attempted")
	}
	if _, ok := tracker.failed["run-1"]; !ok {
		t.Fatalf("expected run recorded as failed")
	}
}

func TestExporter_NavigationTimeout(t *testing.T) {
	source, output := writeSource(t)
	engine := &stubEngine{session: &stubSession{
		loadErr: NewError(KindNavigation, "document did not reach network quiescence", context.DeadlineExceeded),
	}}
	store := newMemoryStore()

	_, err := newTestExporter(engine, store).Export(context.Background(), Request{Source: source, Output: output})
	if KindFromError(err) != KindTimeout {
		t.Fatalf("expected timeout kind, got %v", KindFromError(err))
	}
	if ExitCode(err) != ExitNavigation {
		t.Fatalf("expected navigation exit code, got %d", ExitCode(err))
	}
	if engine.released != 1 {
		t.Fatalf("expected session released after failure")
	}
	if len(store.files) != 0 {
		t.Fatalf("expected no artifact")
	}
}

func TestExporter_CaptureFailure(t *testing.T) {
	source, output := writeSource(t)
	store := newMemoryStore()
	store.putErr = errors.New("read-only file system")
	engine := &stubEngine{session: &stubSession{slides: 1, pdf: []byte("%PDF")}}

	_, err := newTestExporter(engine, store).Export(context.Background(), Request{Source: source, Output: output})
	if KindFromError(err) != KindCapture {
		t.Fatalf("expected capture error, got %v", err)
	}
}

func TestExporter_EmptyCapture(t *testing.T) {
	source, output := writeSource(t)
	engine := &stubEngine{session: &stubSession{slides: 1}}
	_, err := newTestExporter(engine, newMemoryStore()).Export(context.Background(), Request{Source: source, Output: output})
	if KindFromError(err) != KindCapture {
		t.Fatalf("expected capture error, got %v", err)
	}
}

func TestExporter_UnclassifiedSessionErrorIsInternal(t *testing.T) {
	source, output := writeSource(t)
	engine := &stubEngine{session: &stubSession{loadErr: errors.New("websocket closed")}}
	_, err := newTestExporter(engine, newMemoryStore()).Export(context.Background(), Request{Source: source, Output: output})
	if KindFromError(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestExporter_VerificationFailureRemovesArtifact(t *testing.T) {
	source, output := writeSource(t)
	store := newMemoryStore()
	engine := &stubEngine{session: &stubSession{slides: 10, pdf: []byte("%PDF")}}
	exporter := newTestExporter(engine, store)
	exporter.Inspector = stubInspector{report: slideReport(9)}

	_, err := exporter.Export(context.Background(), Request{Source: source, Output: output, Verify: true})
	if KindFromError(err) != KindVerification {
		t.Fatalf("expected verification error, got %v", err)
	}
	if _, ok := store.files[output]; ok {
		t.Fatalf("expected unverified artifact removed")
	}
}

type recordingLogger struct {
	NopLogger
	errors []string
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func TestExporter_UnmatchedSelectorKeepsArtifact(t *testing.T) {
	source, output := writeSource(t)
	store := newMemoryStore()
	engine := &stubEngine{session: &stubSession{slides: 0, pdf: []byte("%PDF three pages")}}
	logger := &recordingLogger{}
	exporter := newTestExporter(engine, store)
	exporter.Inspector = stubInspector{report: slideReport(3)}
	exporter.Logger = logger

	result, err := exporter.Export(context.Background(), Request{Source: source, Output: output, Verify: true, SlideSelector: ".panel"})
	if err != nil {
		t.Fatalf("expected export to succeed, got %v (exit %d)", err, ExitCode(err))
	}
	if result.Pages != 3 || result.Slides != 0 {
		t.Fatalf("expected 3 pages and no matched slides, got %+v", result)
	}
	if _, ok := store.files[output]; !ok {
		t.Fatalf("expected artifact kept")
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], `".panel" matched nothing`) {
		t.Fatalf("expected unmatched selector warning, got %v", logger.errors)
	}

	exporter.Inspector = stubInspector{report: Report{Pages: 1, PageSizes: []PageSize{{Width: 612, Height: 792}}}}
	if _, err := exporter.Export(context.Background(), Request{Source: source, Output: output, Verify: true}); KindFromError(err) != KindVerification {
		t.Fatalf("expected page size to be verified, got %v", err)
	}
}

func TestExporter_StaleArtifactPolicy(t *testing.T) {
	source, output := writeSource(t)
	failing := &stubEngine{session: &stubSession{loadErr: NewError(KindNavigation, "broken", nil)}}

	store := newMemoryStore()
	store.files[output] = []byte("previous run")
	if _, err := newTestExporter(failing, store).Export(context.Background(), Request{Source: source, Output: output}); err == nil {
		t.Fatalf("expected failure")
	}
	if string(store.files[output]) != "previous run" {
		t.Fatalf("expected previous artifact kept by default")
	}

	exporter := newTestExporter(failing, store)
	exporter.RemoveStaleOnFailure = true
	if _, err := exporter.Export(context.Background(), Request{Source: source, Output: output}); err == nil {
		t.Fatalf("expected failure")
	}
	if _, ok := store.files[output]; ok {
		t.Fatalf("expected stale artifact removed")
	}
}

func TestExporter_MissingSourceIsNavigationError(t *testing.T) {
	dir := t.TempDir()
	engine := &stubEngine{session: &stubSession{}}
	_, err := newTestExporter(engine, newMemoryStore()).Export(context.Background(), Request{
		Source: filepath.Join(dir, "missing.html"),
		Output: filepath.Join(dir, "out.pdf"),
	})
	if KindFromError(err) != KindNavigation {
		t.Fatalf("expected navigation error, got %v", err)
	}
	if engine.released != 0 {
		t.Fatalf("browser must not be acquired for a missing document")
	}
}

func TestExporter_RequiresEngineAndStore(t *testing.T) {
	if _, err := (&Exporter{}).Export(context.Background(), Request{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error without engine, got %v", err)
	}
	if _, err := (&Exporter{Engine: &stubEngine{}}).Export(context.Background(), Request{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error without store, got %v", err)
	}
	var nilExporter *Exporter
	if _, err := nilExporter.Export(context.Background(), Request{}); KindFromError(err) != KindInternal {
		t.Fatalf("expected internal error for nil exporter, got %v", err)
	}
}
