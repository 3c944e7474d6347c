package command

import (
	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-errors"
)

// ExportDeck requests a single deck export.
type ExportDeck struct {
	Request export.Request
	Result  *export.Result
}

func (ExportDeck) Type() string { return "deck:export" }

func (msg ExportDeck) Validate() error {
	req := msg.Request
	if req.Source != "" && req.Source == req.Output {
		return errors.New("output must differ from source", errors.CategoryValidation).
			WithTextCode("OUTPUT_IS_SOURCE")
	}
	if !req.Geometry.IsZero() {
		if err := req.Geometry.Validate(); err != nil {
			return errors.New(err.Error(), errors.CategoryValidation).
				WithTextCode("GEOMETRY_INVALID")
		}
	}
	if req.NavigationTimeout < 0 || req.IdleWindow < 0 {
		return errors.New("timeouts must not be negative", errors.CategoryValidation).
			WithTextCode("TIMEOUT_INVALID")
	}
	switch req.ExternalAssets {
	case "", export.AssetsAllow, export.AssetsBlock:
	default:
		return errors.New("unknown external asset policy", errors.CategoryValidation).
			WithTextCode("ASSET_POLICY_INVALID")
	}
	return nil
}
