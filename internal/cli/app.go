package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	exportchromium "github.com/goliatone/go-deck-export/adapters/chromium"
	exportinspect "github.com/goliatone/go-deck-export/adapters/inspect"
	exportrod "github.com/goliatone/go-deck-export/adapters/rod"
	storefs "github.com/goliatone/go-deck-export/adapters/store/fs"
	trackerbun "github.com/goliatone/go-deck-export/adapters/tracker/bun"
	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-deck-export/internal/config"
	"github.com/goliatone/go-deck-export/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what a command needs after config, flags, and env are merged.
type app struct {
	cfg     config.Config
	zap     *zap.Logger
	log     export.Logger
	tracker *trackerbun.Tracker
}

func newApp(cmd *cobra.Command, global *globalOptions, deps Deps) (*app, error) {
	var (
		cfg config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.LoadFile(global.configPath)
	} else {
		cfg, err = config.Load(global.configPath)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(deps.LookupEnv); err != nil {
		return nil, err
	}
	if global.engine != "" {
		cfg.Browser.Engine = global.engine
	}
	if global.browserPath != "" {
		cfg.Browser.Path = global.browserPath
	}
	if global.historyPath != "" {
		cfg.History.Path = global.historyPath
	}

	zl, err := logging.New(cfg.Log.Level, global.verbose)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, zap: zl, log: logging.Wrap(zl)}

	if path := strings.TrimSpace(cfg.History.Path); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				a.Close()
				return nil, export.NewError(export.KindEnvironment, "create history directory", err)
			}
		}
		tracker, err := trackerbun.OpenSQLite(cmd.Context(), path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.tracker = tracker
	}
	return a, nil
}

func (a *app) Close() {
	if a == nil {
		return
	}
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			a.log.Errorf("close history: %v", err)
		}
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
}

func (a *app) engine() (export.Engine, error) {
	switch a.cfg.Browser.Engine {
	case exportchromium.EngineName, "":
		engine := exportchromium.NewEngine(a.cfg.Browser.Path, a.cfg.Browser.Args...)
		engine.Headless = a.cfg.Browser.Headless
		engine.Logger = a.log
		return engine, nil
	case exportrod.EngineName:
		engine := exportrod.NewEngine(a.cfg.Browser.Path, a.cfg.Browser.Args...)
		engine.Headless = a.cfg.Browser.Headless
		engine.Logger = a.log
		return engine, nil
	default:
		return nil, export.NewError(export.KindValidation, fmt.Sprintf("unknown engine %q", a.cfg.Browser.Engine), nil)
	}
}

func (a *app) exporter() (*export.Exporter, error) {
	engine, err := a.engine()
	if err != nil {
		return nil, err
	}
	exporter := export.NewExporter(engine, storefs.NewStore())
	exporter.Inspector = exportinspect.NewInspector()
	exporter.Logger = a.log
	exporter.RemoveStaleOnFailure = a.cfg.Export.RemoveStaleOnFailure
	if a.tracker != nil {
		exporter.Tracker = a.tracker
	}
	return exporter, nil
}

// historyTracker returns the configured tracker or an in-memory one.
func (a *app) historyTracker() export.Tracker {
	if a.tracker != nil {
		return a.tracker
	}
	return export.NewMemoryTracker()
}

func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
