package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-errors"
)

// DeckExporter runs one export.
type DeckExporter interface {
	Export(ctx context.Context, req export.Request) (export.Result, error)
}

// ExportDeckHandler handles deck export commands.
type ExportDeckHandler struct {
	Exporter DeckExporter
}

func NewExportDeckHandler(exporter DeckExporter) *ExportDeckHandler {
	return &ExportDeckHandler{Exporter: exporter}
}

func (h *ExportDeckHandler) Execute(ctx context.Context, msg ExportDeck) error {
	if h == nil || h.Exporter == nil {
		return errors.New("deck exporter is required", errors.CategoryInternal).
			WithTextCode("EXPORTER_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	result, err := h.Exporter.Export(ctx, msg.Request)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[export.Result](ctx); res != nil {
		res.Store(result)
	}
	return nil
}
