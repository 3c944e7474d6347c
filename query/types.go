package query

import (
	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-errors"
)

// RunStatus requests a single run record.
type RunStatus struct {
	RunID string
}

func (RunStatus) Type() string { return "deck:run-status" }

func (msg RunStatus) Validate() error {
	if msg.RunID == "" {
		return errors.New("run ID is required", errors.CategoryValidation).
			WithTextCode("RUN_ID_REQUIRED")
	}
	return nil
}

// RunHistory requests recorded runs.
type RunHistory struct {
	Filter export.RunFilter
}

func (RunHistory) Type() string { return "deck:run-history" }

func (msg RunHistory) Validate() error {
	if msg.Filter.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	switch msg.Filter.State {
	case "", export.RunRunning, export.RunCompleted, export.RunFailed:
	default:
		return errors.New("unknown run state", errors.CategoryValidation).
			WithTextCode("STATE_INVALID")
	}
	return nil
}
