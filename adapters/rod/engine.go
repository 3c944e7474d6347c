// Package exportrod provides a go-rod backed browser engine for go-deck-export.
//
// It mirrors the chromium adapter but waits for quiescence with rod's
// WaitRequestIdle, which honors the configured idle window exactly.
package exportrod

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/goliatone/go-deck-export/export"
	"github.com/ysmood/gson"
)

// EngineName identifies the engine in results and run history.
const EngineName = "rod"

// Engine launches a browser through the rod launcher.
type Engine struct {
	BrowserPath string
	Headless    bool
	Args        []string
	Logger      export.Logger

	// Finder locates a browser when BrowserPath is empty; defaults to
	// launcher.LookPath. The launcher never downloads a browser.
	Finder func() (string, bool)
}

// NewEngine creates a headless rod engine.
func NewEngine(browserPath string, args ...string) *Engine {
	return &Engine{
		BrowserPath: browserPath,
		Headless:    true,
		Args:        args,
		Logger:      export.NopLogger{},
		Finder:      launcher.LookPath,
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return EngineName }

// Session launches a browser, opens one page for fn and kills the browser
// process before returning.
func (e *Engine) Session(ctx context.Context, fn func(ctx context.Context, s export.Session) error) error {
	if e == nil {
		return export.NewError(export.KindInternal, "rod engine is nil", nil)
	}
	if fn == nil {
		return export.NewError(export.KindValidation, "session func is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	bin, err := e.resolveBrowser()
	if err != nil {
		return err
	}
	e.logger().Debugf("launching browser via rod: %s", bin)

	l := launcher.New().Context(ctx).Bin(bin).Headless(e.Headless)
	for _, arg := range e.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	controlURL, err := l.Launch()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return export.NewError(export.KindCanceled, "browser launch interrupted", ctxErr)
		}
		return export.NewError(export.KindEnvironment, fmt.Sprintf("launch %s", bin), err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return export.NewError(export.KindEnvironment, "connect to browser", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			e.logger().Debugf("close browser: %v", err)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return export.NewError(export.KindEnvironment, "open browser page", err)
	}
	defer func() { _ = page.Close() }()

	return fn(ctx, &session{page: page})
}

func (e *Engine) resolveBrowser() (string, error) {
	explicit := strings.TrimSpace(e.BrowserPath)
	if explicit != "" {
		if strings.ContainsRune(explicit, os.PathSeparator) {
			if info, err := os.Stat(explicit); err != nil || info.IsDir() {
				return "", export.NewError(export.KindEnvironment, fmt.Sprintf("browser %q not found", explicit), err)
			}
			return explicit, nil
		}
		path, err := exec.LookPath(explicit)
		if err != nil {
			return "", export.NewError(export.KindEnvironment, fmt.Sprintf("browser %q not found in PATH", explicit), err)
		}
		return path, nil
	}

	finder := e.Finder
	if finder == nil {
		finder = launcher.LookPath
	}
	if path, ok := finder(); ok {
		return path, nil
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
	page *rod.Page
}

// Load sets the viewport, navigates and blocks until no request has been in
// flight for the idle window. Navigation and the wait share one deadline.
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
	idleWindow := opts.IdleWindow
	if idleWindow <= 0 {
		idleWindow = export.DefaultIdleWindow
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := s.page.Context(loadCtx)

	if opts.ExternalAssets == export.AssetsBlock {
		if err := (proto.NetworkEnable{}).Call(p); err != nil {
			return export.NewError(export.KindNavigation, "enable network domain", err)
		}
		if err := (proto.NetworkSetBlockedURLs{Urls: []string{"http://*", "https://*"}}).Call(p); err != nil {
			return export.NewError(export.KindNavigation, "block external assets", err)
		}
	}

	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Geometry.Width,
		Height:            opts.Geometry.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return export.NewError(export.KindNavigation, "set viewport", err)
	}

	waitIdle := p.WaitRequestIdle(idleWindow, nil, nil, nil)
	if err := p.Navigate(opts.URL); err != nil {
		return navigationError(loadCtx, timeout, fmt.Sprintf("navigate to %s", opts.URL), err)
	}
	if err := p.WaitLoad(); err != nil {
		return navigationError(loadCtx, timeout, "wait for load", err)
	}
	waitIdle()
	if err := loadCtx.Err(); err != nil {
		return export.NewError(export.KindNavigation, fmt.Sprintf("document did not reach network quiescence within %s", timeout), err)
	}
	return nil
}

// CountSlides counts the elements matching selector.
func (s *session) CountSlides(ctx context.Context, selector string) (int, error) {
	obj, err := s.page.Context(ctx).Eval(`(selector) => document.querySelectorAll(selector).length`, selector)
	if err != nil {
		return 0, export.NewError(export.KindNavigation, fmt.Sprintf("count slides matching %s", selector), err)
	}
	return obj.Value.Int(), nil
}

// Print captures the loaded document.
func (s *session) Print(ctx context.Context, opts export.PrintOptions) ([]byte, error) {
	if err := opts.Geometry.Validate(); err != nil {
		return nil, err
	}
	reader, err := s.page.Context(ctx).PDF(printRequest(opts))
	if err != nil {
		return nil, export.NewError(export.KindCapture, "rod print to pdf failed", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, export.NewError(export.KindCapture, "read pdf stream", err)
	}
	return data, nil
}

func printRequest(opts export.PrintOptions) *proto.PagePrintToPDF {
	width, height := opts.Geometry.PaperInches()
	return &proto.PagePrintToPDF{
		PaperWidth:        gson.Num(width),
		PaperHeight:       gson.Num(height),
		MarginTop:         gson.Num(0),
		MarginBottom:      gson.Num(0),
		MarginLeft:        gson.Num(0),
		MarginRight:       gson.Num(0),
		Scale:             gson.Num(1),
		PrintBackground:   opts.PrintBackground,
		PreferCSSPageSize: opts.PreferCSSPageSize,
	}
}

func navigationError(ctx context.Context, timeout time.Duration, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return export.NewError(export.KindNavigation, fmt.Sprintf("document did not load within %s", timeout), ctxErr)
	}
	return export.NewError(export.KindNavigation, msg, err)
}
