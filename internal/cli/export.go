package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-deck-export/command"
	"github.com/goliatone/go-deck-export/export"
)

func runExport(ctx context.Context, a *app, out io.Writer) error {
	handler, req, err := exportHandler(a)
	if err != nil {
		return err
	}
	return exportOnce(ctx, handler, req, out)
}

func exportHandler(a *app) (*command.ExportDeckHandler, export.Request, error) {
	exporter, err := a.exporter()
	if err != nil {
		return nil, export.Request{}, err
	}
	req, err := a.cfg.Request()
	if err != nil {
		return nil, export.Request{}, err
	}
	return command.NewExportDeckHandler(exporter), req, nil
}

func exportOnce(ctx context.Context, handler *command.ExportDeckHandler, req export.Request, out io.Writer) error {
	var result export.Result
	if err := handler.Execute(ctx, command.ExportDeck{Request: req, Result: &result}); err != nil {
		return err
	}
	if result.Pages == 0 {
		// Verification was skipped, so only the slide count is known.
		fmt.Fprintf(out, "exported %s (%d slides)\n", displayPath(result.Output), result.Slides)
		return nil
	}
	fmt.Fprintf(out, "exported %s (%d pages)\n", displayPath(result.Output), result.Pages)
	return nil
}
