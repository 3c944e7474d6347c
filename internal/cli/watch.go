package cli

import (
	"context"
	"fmt"
	"path/filepath"

	trackerbun "github.com/goliatone/go-deck-export/adapters/tracker/bun"
	"github.com/goliatone/go-deck-export/adapters/watch"
	"github.com/goliatone/go-deck-export/export"
	"github.com/spf13/cobra"
)

func newWatchCmd(global *globalOptions, deps Deps) *cobra.Command {
	opts := &exportOptions{}
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-export the deck whenever files in its directory change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global, deps)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := opts.apply(cmd, &a.cfg); err != nil {
				return err
			}

			handler, req, err := exportHandler(a)
			if err != nil {
				return err
			}
			source, err := filepath.Abs(req.Source)
			if err != nil {
				return export.NewError(export.KindValidation, "resolve source", err)
			}

			run := func(ctx context.Context) error {
				err := exportOnce(ctx, handler, req, deps.Stdout)
				if err != nil {
					fmt.Fprintf(deps.Stderr, "deckpdf: %s error: %v\n", kindLabel(err), err)
				}
				return err
			}

			watcher, err := watch.NewWatcher(filepath.Dir(source), run, watch.Options{
				Debounce: a.cfg.Watch.Debounce,
				Ignore:   watch.IgnorePaths(watchIgnored(a, req)...),
				Logger:   a.log,
			})
			if err != nil {
				return err
			}
			defer watcher.Close()

			if !skipInitial {
				_ = run(cmd.Context())
			}
			fmt.Fprintf(deps.Stdout, "watching %s\n", displayPath(watcher.Dir()))
			return watcher.Run(cmd.Context())
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for a change before the first export")
	return cmd
}

// watchIgnored lists files an export itself writes, so they never schedule another run.
func watchIgnored(a *app, req export.Request) []string {
	paths := []string{req.Output}
	if a.tracker != nil {
		paths = append(paths, trackerbun.DatabaseFiles(a.cfg.History.Path)...)
	}
	return paths
}
