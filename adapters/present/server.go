// Package present serves a deck in a browser with keyboard navigation and
// exposes export and history endpoints next to it.
package present

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-deck-export/command"
	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-deck-export/query"
)

// Route paths owned by the server.
const (
	ScriptPath  = "/_deck/present.js"
	ExportPath  = "/_deck/export.pdf"
	HistoryPath = "/_deck/history"
	HealthPath  = "/_deck/healthz"
)

const (
	defaultHistoryLimit = 50
	shutdownTimeout     = 5 * time.Second
)

// ExportCommand runs deck export commands.
type ExportCommand interface {
	Execute(ctx context.Context, msg command.ExportDeck) error
}

// HistoryQuery lists recorded runs.
type HistoryQuery interface {
	Query(ctx context.Context, msg query.RunHistory) ([]export.RunRecord, error)
}

// Config configures a Server.
type Config struct {
	// Request is the export request; its Source is the deck served at "/".
	Request export.Request
	Export  ExportCommand
	History HistoryQuery
	// AccessLog receives one line per request when set.
	AccessLog io.Writer
	Logger    export.Logger
}

// Server presents a deck over HTTP.
type Server struct {
	app     *fiber.App
	cfg     Config
	root    string
	index   string
	history *pongo2.Template
	script  []byte

	// exportMu serializes exports so concurrent requests never race on Output.
	exportMu sync.Mutex

	ctxMu sync.RWMutex
	ctx   context.Context
}

// NewServer builds the fiber app for a deck.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = export.NopLogger{}
	}
	if cfg.Request.Source == "" {
		cfg.Request.Source = export.DefaultSource
	}
	if cfg.Request.Geometry.IsZero() {
		cfg.Request.Geometry = export.DefaultGeometry
	}
	if cfg.Request.SlideSelector == "" {
		cfg.Request.SlideSelector = export.DefaultSlideSelector
	}

	source, err := filepath.Abs(cfg.Request.Source)
	if err != nil {
		return nil, export.NewError(export.KindValidation, "resolve deck path", err)
	}
	cfg.Request.Source = source

	script, err := readAsset("present.js")
	if err != nil {
		return nil, export.NewError(export.KindInternal, "load navigation script", err)
	}
	historySource, err := readAsset("history.html")
	if err != nil {
		return nil, export.NewError(export.KindInternal, "load history template", err)
	}
	historyTpl, err := pongo2.FromString(string(historySource))
	if err != nil {
		return nil, export.NewError(export.KindInternal, "parse history template", err)
	}

	s := &Server{
		cfg:     cfg,
		root:    filepath.Dir(source),
		index:   filepath.Base(source),
		history: historyTpl,
		script:  script,
		ctx:     context.Background(),
	}
	s.app = s.newApp()
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	s.ctxMu.Lock()
	s.ctx = ctx
	s.ctxMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return export.NewError(export.KindEnvironment, "listen on "+addr, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "deckpdf",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	if s.cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
			Output: s.cfg.AccessLog,
		}))
	}

	app.Get(HealthPath, s.handleHealth)
	app.Get(ScriptPath, s.handleScript)
	app.Get(ExportPath, s.handleExport)
	app.Get(HistoryPath, s.handleHistory)
	app.Get("/", s.handleDeck)
	app.Get("/"+s.index, s.handleDeck)
	app.Static("/", s.root, fiber.Static{
		Browse:        false,
		CacheDuration: -1,
		Next: func(c *fiber.Ctx) bool {
			return privateAsset(c.Path())
		},
	})
	return app
}

var privateSuffixes = []string{
	".db", ".sqlite", ".sqlite3", "-journal", "-wal", "-shm",
	".yaml", ".yml",
}

// privateAsset reports deck directory files that are never served: dotfiles,
// history databases and config.
func privateAsset(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, suffix := range privateSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "ok"
	if _, err := os.Stat(s.cfg.Request.Source); err != nil {
		status = "missing_deck"
	}
	return c.JSON(fiber.Map{
		"status": status,
		"source": s.cfg.Request.Source,
	})
}

func (s *Server) handleScript(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(s.script)
}

func (s *Server) handleDeck(c *fiber.Ctx) error {
	data, err := os.ReadFile(s.cfg.Request.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return WriteError(c, export.NewError(export.KindNotFound, "deck not found: "+s.index, err))
		}
		return WriteError(c, export.NewError(export.KindInternal, "read deck", err))
	}
	tag := ScriptTag(ScriptPath, s.cfg.Request.SlideSelector, s.cfg.Request.Geometry)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(InjectScript(data, ScriptPath, tag))
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	if s.cfg.Export == nil {
		return WriteError(c, export.NewError(export.KindNotImpl, "export is not configured", nil))
	}

	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	var result export.Result
	if err := s.cfg.Export.Execute(s.baseContext(), command.ExportDeck{
		Request: s.cfg.Request,
		Result:  &result,
	}); err != nil {
		s.cfg.Logger.Errorf("present: export failed: %v", err)
		return WriteError(c, err)
	}

	data, err := os.ReadFile(result.Output)
	if err != nil {
		return WriteError(c, export.NewError(export.KindCapture, "read exported artifact", err))
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filepath.Base(result.Output)+`"`)
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Deck-Run-ID", result.RunID)
	c.Set("X-Deck-Pages", strconv.Itoa(result.Pages))
	return c.Send(data)
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.cfg.History == nil {
		return WriteError(c, export.NewError(export.KindNotImpl, "history is not configured", nil))
	}

	filter, err := parseFilter(c)
	if err != nil {
		return WriteError(c, err)
	}
	runs, err := s.cfg.History.Query(s.baseContext(), query.RunHistory{Filter: filter})
	if err != nil {
		return WriteError(c, err)
	}

	if c.Query("format") == "json" {
		return c.JSON(fiber.Map{"runs": runs})
	}

	body, err := s.history.Execute(pongo2.Context{
		"title":       "Exports of " + s.index,
		"export_path": ExportPath,
		"runs":        runs,
	})
	if err != nil {
		return WriteError(c, export.NewError(export.KindInternal, "render history", err))
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(body)
}

func parseFilter(c *fiber.Ctx) (export.RunFilter, error) {
	filter := export.RunFilter{
		State:  export.RunState(c.Query("state")),
		Source: c.Query("source"),
		Limit:  defaultHistoryLimit,
	}
	if limit := c.Query("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil {
			return export.RunFilter{}, export.NewError(export.KindValidation, "invalid limit", err)
		}
		filter.Limit = parsed
	}
	if since := c.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return export.RunFilter{}, export.NewError(export.KindValidation, "invalid since timestamp", err)
		}
		filter.Since = ts
	}
	return filter, nil
}

func (s *Server) baseContext() context.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.ctx
}
