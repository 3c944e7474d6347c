package exportchromium

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-deck-export/export"
)

// EngineName identifies the engine in results and run history.
const EngineName = "chromium"

var browserCandidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

var darwinBrowserPaths = []string{
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
}

// Engine launches headless Chromium through chromedp.
type Engine struct {
	BrowserPath string
	Headless    bool
	Args        []string
	Logger      export.Logger

	// LookPath resolves browser binaries; defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// NewEngine creates a headless engine.
func NewEngine(browserPath string, args ...string) *Engine {
	return &Engine{
		BrowserPath: browserPath,
		Headless:    true,
		Args:        args,
		Logger:      export.NopLogger{},
		LookPath:    exec.LookPath,
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// Session launches a browser, runs fn against a fresh tab and shuts the browser
// down before returning.
func (e *Engine) Session(ctx context.Context, fn func(ctx context.Context, s export.Session) error) error {
	if e == nil {
		return export.NewError(export.KindInternal, "chromium engine is nil", nil)
	}
	if fn == nil {
		return export.NewError(export.KindValidation, "session func is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	browserPath, err := e.ResolveBrowser()
	if err != nil {
		return err
	}
	e.logger().Debugf("launching chromium: %s", browserPath)

	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options, chromedp.ExecPath(browserPath))
	options = append(options, chromedp.Flag("headless", e.Headless))
	options = append(options, allocatorOptionsFromArgs(e.Args)...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, options...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer func() {
		if err := chromedp.Cancel(browserCtx); err != nil {
			e.logger().Debugf("close chromium: %v", err)
		}
		browserCancel()
	}()

	if err := chromedp.Run(browserCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return export.NewError(export.KindCanceled, "chromium launch interrupted", ctxErr)
		}
		return export.NewError(export.KindEnvironment, fmt.Sprintf("start chromium %s", browserPath), err)
	}

	return fn(browserCtx, &session{logger: e.logger()})
}

// ResolveBrowser returns the browser binary the engine will launch.
func (e *Engine) ResolveBrowser() (string, error) {
	lookPath := e.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	explicit := strings.TrimSpace(e.BrowserPath)
	if explicit != "" {
		if strings.ContainsRune(explicit, os.PathSeparator) {
			info, err := os.Stat(explicit)
			if err != nil {
				return "", export.NewError(export.KindEnvironment, fmt.Sprintf("browser %q not found", explicit), err)
			}
			if info.IsDir() {
				return "", export.NewError(export.KindEnvironment, fmt.Sprintf("browser %q is a directory", explicit), nil)
			}
			return explicit, nil
		}
		path, err := lookPath(explicit)
		if err != nil {
			return "", export.NewError(export.KindEnvironment, fmt.Sprintf("browser %q not found in PATH", explicit), err)
		}
		return path, nil
	}

	for _, candidate := range browserCandidates {
		if path, err := lookPath(candidate); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		for _, candidate := range darwinBrowserPaths {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", export.NewError(export.KindEnvironment, "no chromium or chrome binary found; install one or set --browser (DECKPDF_BROWSER_PATH)", nil)
}

func (e *Engine) logger() export.Logger {
	if e.Logger == nil {
		return export.NopLogger{}
	}
	return e.Logger
}

type session struct {
	logger export.Logger
}

// Load sets the viewport, navigates and waits for the main frame's networkIdle
// lifecycle event. Navigation and the idle wait share one deadline.
func (s *session) Load(ctx context.Context, opts export.LoadOptions) error {
	if opts.URL == "" {
		return export.NewError(export.KindValidation, "document URL is required", nil)
	}
	if err := opts.Geometry.Validate(); err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = export.DefaultNavigationTimeout
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	idle := newIdleSignal()
	chromedp.ListenTarget(loadCtx, idle.handle)

	actions := []chromedp.Action{}
	if opts.ExternalAssets == export.AssetsBlock {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs([]string{"http://*", "https://*"}),
		)
	}
	actions = append(actions,
		chromedp.EmulateViewport(int64(opts.Geometry.Width), int64(opts.Geometry.Height)),
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(opts.URL),
	)

	if err := chromedp.Run(loadCtx, actions...); err != nil {
		if loadCtx.Err() != nil {
			return export.NewError(export.KindNavigation, fmt.Sprintf("document did not load within %s", timeout), loadCtx.Err())
		}
		return export.NewError(export.KindNavigation, fmt.Sprintf("navigate to %s", opts.URL), err)
	}

	select {
	case <-idle.done:
		return nil
	case <-loadCtx.Done():
		return export.NewError(export.KindNavigation, fmt.Sprintf("document did not reach network quiescence within %s", timeout), loadCtx.Err())
	}
}

// CountSlides counts the elements matching selector.
func (s *session) CountSlides(ctx context.Context, selector string) (int, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, export.NewError(export.KindValidation, "invalid slide selector", err)
	}
	var count int
	expr := fmt.Sprintf("document.querySelectorAll(%s).length", quoted)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &count)); err != nil {
		return 0, export.NewError(export.KindNavigation, fmt.Sprintf("count slides matching %s", selector), err)
	}
	return count, nil
}

// Print captures the loaded document.
func (s *session) Print(ctx context.Context, opts export.PrintOptions) ([]byte, error) {
	if err := opts.Geometry.Validate(); err != nil {
		return nil, err
	}
	params := buildPrintToPDFParams(opts)

	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Evaluate(fallbackPageStyleScript, nil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, export.NewError(export.KindCapture, "chromium print to pdf failed", err)
	}
	return pdf, nil
}

// idleSignal closes done once the main frame's current navigation reports
// networkIdle. Events for about:blank are ignored.
type idleSignal struct {
	mu     sync.Mutex
	loader cdp.LoaderID
	once   sync.Once
	done   chan struct{}
}

func newIdleSignal() *idleSignal {
	return &idleSignal{done: make(chan struct{})}
}

func (s *idleSignal) handle(ev any) {
	switch ev := ev.(type) {
	case *page.EventFrameNavigated:
		if ev.Frame == nil || ev.Frame.ParentID != "" || ev.Frame.URL == "about:blank" {
			return
		}
		s.mu.Lock()
		s.loader = ev.Frame.LoaderID
		s.mu.Unlock()
	case *page.EventLifecycleEvent:
		if ev.Name != "networkIdle" {
			return
		}
		s.mu.Lock()
		match := s.loader != "" && ev.LoaderID == s.loader
		s.mu.Unlock()
		if match {
			s.once.Do(func() { close(s.done) })
		}
	}
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
