package trackerbun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-deck-export/export"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Tracker stores export runs in a Bun-backed database.
type Tracker struct {
	DB  *bun.DB
	Now func() time.Time
}

// NewTracker creates a Bun-backed tracker.
func NewTracker(db *bun.DB) *Tracker {
	return &Tracker{DB: db, Now: time.Now}
}

// OpenSQLite opens a sqlite database through sqliteshim and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string) (*Tracker, error) {
	if dsn == "" {
		return nil, export.NewError(export.KindValidation, "history database path is required", nil)
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, export.NewError(export.KindEnvironment, "open history database", err)
	}
	tracker := NewTracker(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := tracker.EnsureSchema(ctx); err != nil {
		_ = tracker.Close()
		return nil, err
	}
	return tracker, nil
}

// DatabaseFiles lists the files sqlite writes for a file-backed DSN: the
// database itself and its journal, WAL and shared-memory siblings. In-memory
// DSNs have none.
func DatabaseFiles(dsn string) []string {
	path := strings.TrimPrefix(strings.TrimSpace(dsn), "file:")
	path, query, _ := strings.Cut(path, "?")
	if path == "" || path == ":memory:" || strings.Contains(query, "mode=memory") {
		return nil
	}
	return []string{path, path + "-journal", path + "-wal", path + "-shm"}
}

// EnsureSchema creates the runs table when missing.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	_, err := t.DB.NewCreateTable().Model((*runModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return export.NewError(export.KindInternal, "create history schema", err)
	}
	return nil
}

// Close closes the underlying database.
func (t *Tracker) Close() error {
	if t == nil || t.DB == nil {
		return nil
	}
	return t.DB.Close()
}

// Start records a running export.
func (t *Tracker) Start(ctx context.Context, record export.RunRecord) (string, error) {
	if t == nil || t.DB == nil {
		return "", export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if record.ID == "" {
		return "", export.NewError(export.KindValidation, "run ID is required", nil)
	}
	if record.State == "" {
		record.State = export.RunRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = t.now()
	}

	model := modelFromRecord(record)
	if _, err := t.DB.NewInsert().Model(&model).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// Complete marks a run as completed with its result.
func (t *Tracker) Complete(ctx context.Context, id string, result export.Result) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "run ID is required", nil)
	}

	completedAt := result.FinishedAt
	if completedAt.IsZero() {
		completedAt = t.now()
	}
	res, err := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", export.RunCompleted).
		Set("slides = ?", result.Slides).
		Set("pages = ?", result.Pages).
		Set("bytes = ?", result.Bytes).
		Set("completed_at = ?", completedAt).
		Where("id = ?", id).
		Exec(ctx)
	return checkAffected(res, err, id)
}

// Fail marks a run as failed.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	if t == nil || t.DB == nil {
		return export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.NewError(export.KindValidation, "run ID is required", nil)
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := t.DB.NewUpdate().Model((*runModel)(nil)).
		Set("state = ?", export.RunFailed).
		Set("error_kind = ?", string(export.KindFromError(cause))).
		Set("error = ?", message).
		Set("completed_at = COALESCE(completed_at, ?)", t.now()).
		Where("id = ?", id).
		Exec(ctx)
	return checkAffected(res, err, id)
}

// Status returns a run by ID.
func (t *Tracker) Status(ctx context.Context, id string) (export.RunRecord, error) {
	if t == nil || t.DB == nil {
		return export.RunRecord{}, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}
	if id == "" {
		return export.RunRecord{}, export.NewError(export.KindValidation, "run ID is required", nil)
	}

	model := new(runModel)
	err := t.DB.NewSelect().Model(model).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.RunRecord{}, export.NewError(export.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
		}
		return export.RunRecord{}, err
	}
	return model.toRecord(), nil
}

// List returns runs matching a filter, newest first.
func (t *Tracker) List(ctx context.Context, filter export.RunFilter) ([]export.RunRecord, error) {
	if t == nil || t.DB == nil {
		return nil, export.NewError(export.KindNotImpl, "tracker database not configured", nil)
	}

	models := make([]runModel, 0)
	query := t.DB.NewSelect().Model(&models)
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]export.RunRecord, 0, len(models))
	for _, model := range models {
		records = append(records, model.toRecord())
	}
	return records, nil
}

func (t *Tracker) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

func checkAffected(res sql.Result, err error, id string) error {
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return export.NewError(export.KindNotFound, fmt.Sprintf("run %q not found", id), nil)
	}
	return nil
}

type runModel struct {
	bun.BaseModel `bun:"table:deck_export_runs,alias:runs"`

	ID          string    `bun:",pk"`
	Source      string    `bun:",notnull"`
	Output      string    `bun:",notnull"`
	Engine      string    `bun:",notnull"`
	State       string    `bun:",notnull"`
	Slides      int       `bun:"slides"`
	Pages       int       `bun:"pages"`
	Bytes       int64     `bun:"bytes"`
	ErrorKind   string    `bun:"error_kind"`
	Error       string    `bun:"error"`
	CreatedAt   time.Time `bun:"created_at"`
	CompletedAt time.Time `bun:"completed_at,nullzero"`
}

func modelFromRecord(record export.RunRecord) runModel {
	return runModel{
		ID:          record.ID,
		Source:      record.Source,
		Output:      record.Output,
		Engine:      record.Engine,
		State:       string(record.State),
		Slides:      record.Slides,
		Pages:       record.Pages,
		Bytes:       record.Bytes,
		ErrorKind:   string(record.ErrorKind),
		Error:       record.Error,
		CreatedAt:   record.CreatedAt,
		CompletedAt: record.CompletedAt,
	}
}

func (m runModel) toRecord() export.RunRecord {
	return export.RunRecord{
		ID:          m.ID,
		Source:      m.Source,
		Output:      m.Output,
		Engine:      m.Engine,
		State:       export.RunState(m.State),
		Slides:      m.Slides,
		Pages:       m.Pages,
		Bytes:       m.Bytes,
		ErrorKind:   export.ErrorKind(m.ErrorKind),
		Error:       m.Error,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}
