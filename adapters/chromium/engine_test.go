package exportchromium

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	exportinspect "github.com/goliatone/go-deck-export/adapters/inspect"
	storefs "github.com/goliatone/go-deck-export/adapters/store/fs"
	"github.com/goliatone/go-deck-export/export"
)

func chromeBinaryPath(t *testing.T) string {
	t.Helper()

	chromePath := os.Getenv("CHROME_BIN")
	if chromePath == "" {
		for _, candidate := range browserCandidates {
			if path, err := exec.LookPath(candidate); err == nil {
				chromePath = path
				break
			}
		}
	}
	if chromePath == "" {
		t.Skip("chromium binary not found; set CHROME_BIN to run this test")
	}

	return chromePath
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(chromeBinaryPath(t), "--no-sandbox", "--disable-dev-shm-usage")
}

func writeDeck(t *testing.T, dir string, slides int, extra string) string {
	t.Helper()
	var body strings.Builder
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&body, `<section class="slide" style="background:#0f172a;color:#e2e8f0">Slide %d</section>`, i+1)
	}
	html := `<!doctype html><html><head><style>
@page { size: 1024px 576px; margin: 0; }
html, body { margin: 0; padding: 0; }
.slide { width: 1024px; height: 576px; overflow: hidden; page-break-after: always; break-after: page; }
.slide:last-child { page-break-after: auto; break-after: auto; }
</style></head><body>` + body.String() + extra + `</body></html>`
	path := filepath.Join(dir, "presentation.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func TestBuildPrintToPDFParams_UsesSlideGeometry(t *testing.T) {
	params := buildPrintToPDFParams(export.PrintOptions{
		Geometry:          export.DefaultGeometry,
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if diff := params.PaperWidth - 1024.0/96.0; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("expected paper width %f, got %f", 1024.0/96.0, params.PaperWidth)
	}
	if diff := params.PaperHeight - 6.0; diff > 0.0001 || diff < -0.0001 {
		t.Fatalf("expected paper height 6, got %f", params.PaperHeight)
	}
	if !params.PrintBackground {
		t.Fatalf("expected print background true")
	}
	if !params.PreferCSSPageSize {
		t.Fatalf("expected prefer css page size true")
	}
	if params.Scale != 1 {
		t.Fatalf("expected scale 1, got %f", params.Scale)
	}
}

func TestAllocatorOptionsFromArgs(t *testing.T) {
	options := allocatorOptionsFromArgs([]string{"--no-sandbox", "", "--", "window-size=1024,576", "  "})
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(options))
	}
}

func TestResolveBrowser_NoneFound(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("app bundle lookup is host dependent on darwin")
	}
	engine := &Engine{LookPath: func(string) (string, error) { return "", exec.ErrNotFound }}
	_, err := engine.ResolveBrowser()
	if export.KindFromError(err) != export.KindEnvironment {
		t.Fatalf("expected environment error, got %v", err)
	}
}

func TestResolveBrowser_ExplicitMissingPath(t *testing.T) {
	engine := &Engine{BrowserPath: filepath.Join(t.TempDir(), "missing", "chrome")}
	_, err := engine.ResolveBrowser()
	if export.KindFromError(err) != export.KindEnvironment {
		t.Fatalf("expected environment error, got %v", err)
	}
}

func TestResolveBrowser_FirstCandidateWins(t *testing.T) {
	var asked []string
	engine := &Engine{LookPath: func(file string) (string, error) {
		asked = append(asked, file)
		if file == "chromium" {
			return "/usr/bin/chromium", nil
		}
		return "", exec.ErrNotFound
	}}
	path, err := engine.ResolveBrowser()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != "/usr/bin/chromium" {
		t.Fatalf("unexpected path %q", path)
	}
	if asked[len(asked)-1] != "chromium" {
		t.Fatalf("expected lookup to stop at chromium, asked %v", asked)
	}
}

func TestSession_EnvironmentErrorBeforeNavigation(t *testing.T) {
	engine := &Engine{
		BrowserPath: filepath.Join(t.TempDir(), "no-such-chrome"),
		Headless:    true,
	}
	called := false
	err := engine.Session(context.Background(), func(ctx context.Context, s export.Session) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("session func must not run without a browser")
	}
	if export.KindFromError(err) != export.KindEnvironment {
		t.Fatalf("expected environment error, got %v", err)
	}
	if export.ExitCode(err) != export.ExitEnvironment {
		t.Fatalf("expected exit code %d, got %d", export.ExitEnvironment, export.ExitCode(err))
	}
}

func TestIdleSignal_IgnoresBlankAndOtherLoaders(t *testing.T) {
	signal := newIdleSignal()
	signal.handle(&page.EventFrameNavigated{Frame: &cdp.Frame{URL: "about:blank", LoaderID: "blank"}})
	signal.handle(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: "blank"})
	select {
	case <-signal.done:
		t.Fatalf("idle must not fire for about:blank")
	default:
	}

	signal.handle(&page.EventFrameNavigated{Frame: &cdp.Frame{URL: "file:///deck.html", LoaderID: "deck"}})
	signal.handle(&page.EventFrameNavigated{Frame: &cdp.Frame{URL: "file:///frame.html", LoaderID: "child", ParentID: "main"}})
	signal.handle(&page.EventLifecycleEvent{Name: "load", LoaderID: "deck"})
	signal.handle(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: "child"})
	select {
	case <-signal.done:
		t.Fatalf("idle must only fire for the main frame networkIdle")
	default:
	}

	signal.handle(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: "deck"})
	signal.handle(&page.EventLifecycleEvent{Name: "networkIdle", LoaderID: "deck"})
	select {
	case <-signal.done:
	default:
		t.Fatalf("expected idle signal")
	}
}

func TestExport_TenSlidesTenPages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium export test in short mode")
	}
	engine := newTestEngine(t)
	dir := t.TempDir()
	source := writeDeck(t, dir, 10, "")
	output := filepath.Join(dir, "presentation.pdf")

	exporter := export.NewExporter(engine, storefs.NewStore())
	exporter.Inspector = exportinspect.NewInspector()

	for run := 0; run < 2; run++ {
		result, err := exporter.Export(context.Background(), export.Request{
			Source:            source,
			Output:            output,
			NavigationTimeout: 20 * time.Second,
			Verify:            true,
		})
		if err != nil {
			t.Fatalf("export run %d: %v", run, err)
		}
		if result.Slides != 10 || result.Pages != 10 {
			t.Fatalf("run %d: expected 10 slides and 10 pages, got %d/%d", run, result.Slides, result.Pages)
		}
		for i, size := range result.PageSizes {
			if !export.DefaultGeometry.Matches(size, export.PageTolerance) {
				t.Fatalf("run %d page %d: unexpected size %+v", run, i+1, size)
			}
		}
	}

	inspector := exportinspect.NewInspector()
	fills, err := inspector.FillColors(context.Background(), output)
	if err != nil {
		t.Fatalf("fill colours: %v", err)
	}
	if len(fills) != 10 {
		t.Fatalf("expected content for 10 pages, got %d", len(fills))
	}
	slideFill, err := exportinspect.ParseHexColor("#0f172a")
	if err != nil {
		t.Fatalf("parse colour: %v", err)
	}
	for i, page := range fills {
		found := false
		for _, fill := range page {
			if fill.Near(slideFill, 1.0/255) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("page %d: expected slide background %s, got %v", i+1, slideFill.Hex(), page)
		}
	}

	writeDeck(t, dir, 3, "")
	result, err := exporter.Export(context.Background(), export.Request{
		Source:            source,
		Output:            output,
		NavigationTimeout: 20 * time.Second,
		Verify:            true,
	})
	if err != nil {
		t.Fatalf("export shorter deck: %v", err)
	}
	report, err := inspector.Inspect(context.Background(), output)
	if err != nil {
		t.Fatalf("inspect replaced artifact: %v", err)
	}
	if result.Pages != 3 || report.Pages != 3 {
		t.Fatalf("expected the 3-page run to replace the 10-page artifact, got %d/%d", result.Pages, report.Pages)
	}
}

func TestExport_UnreachableResourceTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium timeout test in short mode")
	}
	engine := newTestEngine(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	dir := t.TempDir()
	source := writeDeck(t, dir, 1, `<img src="`+server.URL+`/never.png">`)

	exporter := export.NewExporter(engine, storefs.NewStore())
	_, err := exporter.Export(context.Background(), export.Request{
		Source:            source,
		Output:            filepath.Join(dir, "presentation.pdf"),
		NavigationTimeout: 3 * time.Second,
	})
	if err == nil {
		t.Fatalf("expected navigation error")
	}
	if kind := export.KindFromError(err); kind != export.KindTimeout && kind != export.KindNavigation {
		t.Fatalf("expected timeout or navigation error, got %v", kind)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "presentation.pdf")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no artifact, stat err=%v", statErr)
	}
}

func TestExport_UnwritableOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium capture test in short mode")
	}
	engine := newTestEngine(t)
	dir := t.TempDir()
	source := writeDeck(t, dir, 2, "")

	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("file"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	exporter := export.NewExporter(engine, storefs.NewStore())
	_, err := exporter.Export(context.Background(), export.Request{
		Source:            source,
		Output:            filepath.Join(blocker, "presentation.pdf"),
		NavigationTimeout: 20 * time.Second,
	})
	if export.KindFromError(err) != export.KindCapture {
		t.Fatalf("expected capture error, got %v", err)
	}
}
