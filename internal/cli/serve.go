package cli

import (
	"fmt"

	"github.com/goliatone/go-deck-export/adapters/present"
	"github.com/goliatone/go-deck-export/command"
	"github.com/goliatone/go-deck-export/query"
	"github.com/spf13/cobra"
)

func newServeCmd(global *globalOptions, deps Deps) *cobra.Command {
	opts := &exportOptions{}
	var addr string
	var accessLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Present the deck in a browser with keyboard navigation",
		Long: `Serves the deck directory and injects a navigation script:
ArrowLeft/ArrowRight/Space/Home/End move between slides and "f" toggles fullscreen.
The PDF is available at /_deck/export.pdf and run history at /_deck/history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global, deps)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := opts.apply(cmd, &a.cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.Serve.Addr = addr
			}

			exporter, err := a.exporter()
			if err != nil {
				return err
			}
			tracker := a.historyTracker()
			exporter.Tracker = tracker
			req, err := a.cfg.Request()
			if err != nil {
				return err
			}

			cfg := present.Config{
				Request: req,
				Export:  command.NewExportDeckHandler(exporter),
				History: query.NewRunHistoryHandler(tracker),
				Logger:  a.log,
			}
			if accessLog {
				cfg.AccessLog = deps.Stderr
			}
			server, err := present.NewServer(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(deps.Stdout, "presenting %s on http://%s\n", displayPath(req.Source), a.cfg.Serve.Addr)
			return server.Listen(cmd.Context(), a.cfg.Serve.Addr)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "log each request to stderr")
	return cmd
}
