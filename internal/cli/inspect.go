package cli

import (
	"fmt"

	exportinspect "github.com/goliatone/go-deck-export/adapters/inspect"
	"github.com/goliatone/go-deck-export/export"
	"github.com/spf13/cobra"
)

func newInspectCmd(global *globalOptions, deps Deps) *cobra.Command {
	var geometry string
	var slides int
	var fills bool

	cmd := &cobra.Command{
		Use:   "inspect <pdf>",
		Short: "Print page count and page sizes of a PDF, optionally verifying them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			inspector := exportinspect.NewInspector()
			report, err := inspector.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var colors [][]exportinspect.Color
			if fills {
				if colors, err = inspector.FillColors(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintf(deps.Stdout, "%s: %d pages\n", args[0], report.Pages)
			for i, size := range report.PageSizes {
				fmt.Fprintf(deps.Stdout, "  page %d: %.1f x %.1f pt", i+1, size.Width, size.Height)
				if i < len(colors) {
					for _, c := range colors[i] {
						fmt.Fprintf(deps.Stdout, " %s", c.Hex())
					}
				}
				fmt.Fprintln(deps.Stdout)
			}

			if slides <= 0 {
				return nil
			}
			expected := export.DefaultGeometry
			if geometry != "" {
				if expected, err = export.ParseGeometry(geometry); err != nil {
					return err
				}
			}
			if err := export.VerifyReport(report, expected, slides); err != nil {
				return err
			}
			fmt.Fprintf(deps.Stdout, "verified %d pages of %s\n", slides, expected)
			return nil
		},
	}

	cmd.Flags().IntVar(&slides, "slides", 0, "expected slide count; enables verification")
	cmd.Flags().BoolVar(&fills, "fills", false, "list non-white fill colours per page")
	cmd.Flags().StringVar(&geometry, "geometry", "", "expected slide size (default 1024x576)")
	return cmd
}
