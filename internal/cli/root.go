// Package cli implements the deckpdf command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-deck-export/internal/config"
	"github.com/spf13/cobra"
)

// Deps are the process facilities the commands use.
type Deps struct {
	Stdout    io.Writer
	Stderr    io.Writer
	LookupEnv func(string) (string, bool)
}

func (d Deps) withDefaults() Deps {
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.LookupEnv == nil {
		d.LookupEnv = os.LookupEnv
	}
	return d
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, deps Deps) int {
	deps = deps.withDefaults()
	cmd := newRootCmd(deps)
	cmd.SetArgs(args)
	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "deckpdf: %s error: %v\n", kindLabel(err), err)
		return export.ExitCode(err)
	}
	return export.ExitOK
}

type globalOptions struct {
	configPath  string
	verbose     bool
	engine      string
	browserPath string
	historyPath string
}

type exportOptions struct {
	source        string
	output        string
	geometry      string
	selector      string
	timeout       time.Duration
	idleWindow    time.Duration
	blockExternal bool
	noVerify      bool
	removeStale   bool
}

func newRootCmd(deps Deps) *cobra.Command {
	global := &globalOptions{}
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:           "deckpdf",
		Short:         "Export an HTML slide deck to a one-page-per-slide PDF",
		Long:          "Run without arguments to export presentation.html to presentation.pdf in the current directory.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd, global, deps)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := opts.apply(cmd, &app.cfg); err != nil {
				return err
			}
			return runExport(cmd.Context(), app, deps.Stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return export.NewError(export.KindValidation, err.Error(), nil)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&global.configPath, "config", config.DefaultFile, "config file (optional)")
	flags.BoolVarP(&global.verbose, "verbose", "v", false, "enable debug logging on stderr")
	flags.StringVar(&global.engine, "engine", "", "rendering engine: chromium|rod")
	flags.StringVar(&global.browserPath, "browser", "", "path to a Chrome/Chromium binary")
	flags.StringVar(&global.historyPath, "history", "", "sqlite database recording export runs")

	opts.register(cmd)

	cmd.AddCommand(
		newServeCmd(global, deps),
		newWatchCmd(global, deps),
		newInspectCmd(global, deps),
		newHistoryCmd(global, deps),
	)
	return cmd
}

func (o *exportOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.source, "source", "s", "", "deck HTML file")
	flags.StringVarP(&o.output, "output", "o", "", "PDF artifact path")
	flags.StringVar(&o.geometry, "geometry", "", "slide size, e.g. 1024x576 or 10.6667inx6in")
	flags.StringVar(&o.selector, "selector", "", "CSS selector matching one element per slide")
	flags.DurationVar(&o.timeout, "timeout", 0, "navigation timeout")
	flags.DurationVar(&o.idleWindow, "idle", 0, "network idle window")
	flags.BoolVar(&o.blockExternal, "block-external", false, "block remote http(s) resources")
	flags.BoolVar(&o.noVerify, "no-verify", false, "skip page count and size verification")
	flags.BoolVar(&o.removeStale, "remove-stale", false, "delete an earlier artifact when the export fails")
}

func (o *exportOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Export.Source = o.source
	}
	if flags.Changed("output") {
		cfg.Export.Output = o.output
	}
	if flags.Changed("geometry") {
		cfg.Export.Geometry = o.geometry
	}
	if flags.Changed("selector") {
		cfg.Export.SlideSelector = o.selector
	}
	if flags.Changed("timeout") {
		cfg.Export.NavigationTimeout = o.timeout
	}
	if flags.Changed("idle") {
		cfg.Export.IdleWindow = o.idleWindow
	}
	if o.blockExternal {
		cfg.Export.ExternalAssets = string(export.AssetsBlock)
	}
	if o.noVerify {
		cfg.Export.Verify = false
	}
	if o.removeStale {
		cfg.Export.RemoveStaleOnFailure = true
	}
	return cfg.Validate()
}

func kindLabel(err error) string {
	kind := export.KindFromError(err)
	if kind == "" {
		return string(export.KindInternal)
	}
	return string(kind)
}
