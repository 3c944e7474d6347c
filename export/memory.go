package export

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryTracker keeps run history in memory (dev/test and short-lived servers).
type MemoryTracker struct {
	mu      sync.RWMutex
	records map[string]RunRecord
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{records: make(map[string]RunRecord)}
}

// Start records a running export.
func (t *MemoryTracker) Start(ctx context.Context, record RunRecord) (string, error) {
	_ = ctx
	if record.ID == "" {
		return "", NewError(KindValidation, "run ID is required", nil)
	}
	if record.State == "" {
		record.State = RunRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	t.mu.Lock()
	if t.records == nil {
		t.records = make(map[string]RunRecord)
	}
	t.records[record.ID] = record
	t.mu.Unlock()
	return record.ID, nil
}

// Complete marks a run as completed.
func (t *MemoryTracker) Complete(ctx context.Context, id string, result Result) error {
	_ = ctx

	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = RunCompleted
	record.Slides = result.Slides
	record.Pages = result.Pages
	record.Bytes = result.Bytes
	record.CompletedAt = result.FinishedAt
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}
	t.records[id] = record
	return nil
}

// Fail marks a run as failed.
func (t *MemoryTracker) Fail(ctx context.Context, id string, cause error) error {
	_ = ctx

	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[id]
	if !ok {
		return NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	record.State = RunFailed
	record.ErrorKind = KindFromError(cause)
	if cause != nil {
		record.Error = cause.Error()
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}
	t.records[id] = record
	return nil
}

// Status returns a run by ID.
func (t *MemoryTracker) Status(ctx context.Context, id string) (RunRecord, error) {
	_ = ctx
	t.mu.RLock()
	record, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return RunRecord{}, NewError(KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return record, nil
}

// List returns runs matching a filter, newest first.
func (t *MemoryTracker) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	_ = ctx
	t.mu.RLock()
	records := make([]RunRecord, 0, len(t.records))
	for _, record := range t.records {
		if filter.State != "" && record.State != filter.State {
			continue
		}
		if filter.Source != "" && record.Source != filter.Source {
			continue
		}
		if !filter.Since.IsZero() && record.CreatedAt.Before(filter.Since) {
			continue
		}
		records = append(records, record)
	}
	t.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}
