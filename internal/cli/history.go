package cli

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goliatone/go-deck-export/adapters/report"
	storefs "github.com/goliatone/go-deck-export/adapters/store/fs"
	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-deck-export/query"
	"github.com/spf13/cobra"
)

func newHistoryCmd(global *globalOptions, deps Deps) *cobra.Command {
	var state string
	var limit int
	var since time.Duration
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded export runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global, deps)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.tracker == nil {
				return export.NewError(export.KindValidation, "no history database configured (use --history or history.path)", nil)
			}

			filter := export.RunFilter{State: export.RunState(state), Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			runs, err := query.NewRunHistoryHandler(a.tracker).Query(cmd.Context(), query.RunHistory{Filter: filter})
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				buf := &bytes.Buffer{}
				if _, err := report.WriteXLSX(cmd.Context(), buf, runs); err != nil {
					return export.NewError(export.KindCapture, "render history workbook", err)
				}
				if _, err := storefs.NewStore().Put(cmd.Context(), xlsxPath, buf); err != nil {
					return err
				}
				fmt.Fprintf(deps.Stdout, "wrote %d runs to %s\n", len(runs), xlsxPath)
				return nil
			}
			return printRuns(deps.Stdout, runs)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "filter by state: running|completed|failed")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs started within this duration")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write the runs to an XLSX workbook instead of printing")
	return cmd
}

func printRuns(w io.Writer, runs []export.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tENGINE\tSTATE\tPAGES\tOUTPUT\tERROR")
	for _, run := range runs {
		errText := ""
		if run.ErrorKind != "" {
			errText = string(run.ErrorKind) + ": " + run.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.Engine, run.State, run.Pages, displayPath(run.Output), errText)
	}
	return tw.Flush()
}
