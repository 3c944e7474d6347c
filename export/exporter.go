package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exporter converts a slide document into a paginated PDF artifact.
//
// Each call to Export acquires one browser session, loads the document, waits for
// network quiescence, captures it and persists the artifact. The artifact is
// replaced atomically; see RemoveStaleOnFailure for what happens to an earlier
// artifact when a run fails.
type Exporter struct {
	Engine    Engine
	Store     ArtifactStore
	Inspector Inspector
	Tracker   Tracker
	Logger    Logger

	// RemoveStaleOnFailure deletes an artifact left by an earlier run when the
	// current run fails, so a stale file is never mistaken for a fresh export.
	RemoveStaleOnFailure bool

	Now         func() time.Time
	IDGenerator func() string
}

// NewExporter creates an exporter with default hooks.
func NewExporter(engine Engine, store ArtifactStore) *Exporter {
	return &Exporter{
		Engine:      engine,
		Store:       store,
		Logger:      NopLogger{},
		Now:         time.Now,
		IDGenerator: uuid.NewString,
	}
}

// Export runs a single export.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	if e == nil {
		return Result{}, NewError(KindInternal, "exporter is nil", nil)
	}
	if e.Engine == nil {
		return Result{}, NewError(KindValidation, "exporter requires an engine", nil)
	}
	if e.Store == nil {
		return Result{}, NewError(KindValidation, "exporter requires an artifact store", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	normalized, err := NormalizeRequest(req)
	if err != nil {
		return Result{}, err
	}
	req = normalized

	started := e.now()
	runID := e.startRun(ctx, RunRecord{
		ID:        e.nextID(),
		Source:    req.Source,
		Output:    req.Output,
		Engine:    e.Engine.Name(),
		State:     RunRunning,
		CreatedAt: started,
	})
	e.logger().Infof("export %s: %s -> %s (engine=%s geometry=%s)", runID, req.Source, req.Output, e.Engine.Name(), req.Geometry)

	result, err := e.run(ctx, req)
	if err != nil {
		e.handleFailure(ctx, req, err)
		e.failRun(ctx, runID, err)
		e.logger().Errorf("export %s failed (%s): %v", runID, KindFromError(err), err)
		return Result{}, err
	}

	result.RunID = runID
	result.Engine = e.Engine.Name()
	result.StartedAt = started
	result.FinishedAt = e.now()
	result.Duration = result.FinishedAt.Sub(started)
	e.completeRun(ctx, runID, result)
	e.logger().Infof("export %s completed: %d slide(s), %d page(s), %d bytes in %s", runID, result.Slides, result.Pages, result.Bytes, result.Duration)
	return result, nil
}

func (e *Exporter) run(ctx context.Context, req Request) (Result, error) {
	var (
		pdf    []byte
		slides int
	)

	err := e.Engine.Session(ctx, func(ctx context.Context, s Session) error {
		err := s.Load(ctx, LoadOptions{
			URL:            FileURL(req.Source),
			Geometry:       req.Geometry,
			Timeout:        req.NavigationTimeout,
			IdleWindow:     req.IdleWindow,
			ExternalAssets: req.ExternalAssets,
		})
		if err != nil {
			return err
		}
		e.logger().Debugf("document quiescent: %s", req.Source)

		slides, err = s.CountSlides(ctx, req.SlideSelector)
		if err != nil {
			return err
		}
		e.logger().Debugf("document has %d slide panel(s) matching %q", slides, req.SlideSelector)

		pdf, err = s.Print(ctx, PrintOptions{
			Geometry:          req.Geometry,
			PrintBackground:   BoolValue(req.PrintBackground, true),
			PreferCSSPageSize: BoolValue(req.PreferCSSPageSize, true),
		})
		return err
	})
	if err != nil {
		var exportErr *ExportError
		if !errors.As(err, &exportErr) {
			err = NewError(KindInternal, "browser session failed", err)
		}
		return Result{}, err
	}
	if len(pdf) == 0 {
		return Result{}, NewError(KindCapture, "capture returned no data", nil)
	}

	written, err := e.Store.Put(ctx, req.Output, bytes.NewReader(pdf))
	if err != nil {
		var exportErr *ExportError
		if !errors.As(err, &exportErr) {
			err = NewError(KindCapture, fmt.Sprintf("write %s", req.Output), err)
		}
		return Result{}, err
	}

	result := Result{
		Source: req.Source,
		Output: req.Output,
		Slides: slides,
		Bytes:  written,
	}

	if req.Verify && e.Inspector != nil {
		if slides == 0 {
			e.logger().Errorf("slide selector %q matched nothing in %s; checking page size only", req.SlideSelector, req.Source)
		}
		report, err := e.Inspector.Inspect(ctx, req.Output)
		if err == nil {
			err = report.Verify(req.Geometry, slides)
		}
		if err != nil {
			if rmErr := e.Store.Remove(ctx, req.Output); rmErr != nil {
				e.logger().Errorf("remove unverified artifact %s: %v", req.Output, rmErr)
			}
			var exportErr *ExportError
			if !errors.As(err, &exportErr) {
				err = NewError(KindVerification, "inspect artifact", err)
			}
			return Result{}, err
		}
		result.Pages = report.Pages
		result.PageSizes = report.PageSizes
	}

	return result, nil
}

func (e *Exporter) handleFailure(ctx context.Context, req Request, err error) {
	if !e.RemoveStaleOnFailure || KindFromError(err) == KindVerification {
		return
	}
	if rmErr := e.Store.Remove(context.WithoutCancel(ctx), req.Output); rmErr != nil {
		e.logger().Errorf("remove stale artifact %s: %v", req.Output, rmErr)
	}
}

func (e *Exporter) startRun(ctx context.Context, record RunRecord) string {
	if e.Tracker == nil {
		return record.ID
	}
	id, err := e.Tracker.Start(ctx, record)
	if err != nil {
		e.logger().Errorf("record run start: %v", err)
		return record.ID
	}
	return id
}

func (e *Exporter) completeRun(ctx context.Context, id string, result Result) {
	if e.Tracker == nil {
		return
	}
	if err := e.Tracker.Complete(ctx, id, result); err != nil {
		e.logger().Errorf("record run %s completion: %v", id, err)
	}
}

func (e *Exporter) failRun(ctx context.Context, id string, cause error) {
	if e.Tracker == nil {
		return
	}
	if err := e.Tracker.Fail(context.WithoutCancel(ctx), id, cause); err != nil {
		e.logger().Errorf("record run %s failure: %v", id, err)
	}
}

func (e *Exporter) logger() Logger {
	if e.Logger == nil {
		return NopLogger{}
	}
	return e.Logger
}

func (e *Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Exporter) nextID() string {
	if e.IDGenerator == nil {
		return uuid.NewString()
	}
	return e.IDGenerator()
}
