package query

import (
	"context"

	"github.com/goliatone/go-deck-export/export"
	"github.com/goliatone/go-errors"
)

// RunStatusHandler returns a single run record.
type RunStatusHandler struct {
	Tracker export.Tracker
}

func NewRunStatusHandler(tracker export.Tracker) *RunStatusHandler {
	return &RunStatusHandler{Tracker: tracker}
}

func (h *RunStatusHandler) Query(ctx context.Context, msg RunStatus) (export.RunRecord, error) {
	if h == nil || h.Tracker == nil {
		return export.RunRecord{}, errors.New("run tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return export.RunRecord{}, err
	}
	return h.Tracker.Status(ctx, msg.RunID)
}

// RunHistoryHandler returns recorded runs, newest first.
type RunHistoryHandler struct {
	Tracker export.Tracker
}

func NewRunHistoryHandler(tracker export.Tracker) *RunHistoryHandler {
	return &RunHistoryHandler{Tracker: tracker}
}

func (h *RunHistoryHandler) Query(ctx context.Context, msg RunHistory) ([]export.RunRecord, error) {
	if h == nil || h.Tracker == nil {
		return nil, errors.New("run tracker is required", errors.CategoryInternal).
			WithTextCode("TRACKER_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return h.Tracker.List(ctx, msg.Filter)
}
