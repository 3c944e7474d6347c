package export

import (
	"context"
	"io"
	"time"
)

// Defaults for the fixed invocation.
const (
	DefaultSource            = "presentation.html"
	DefaultOutput            = "presentation.pdf"
	DefaultSlideSelector     = ".slide"
	DefaultNavigationTimeout = 30 * time.Second
	DefaultIdleWindow        = 500 * time.Millisecond
)

// AssetPolicy controls whether the document may fetch remote resources.
type AssetPolicy string

const (
	AssetsAllow AssetPolicy = "allow"
	AssetsBlock AssetPolicy = "block"
)

// Request describes a single export.
type Request struct {
	Source            string
	Output            string
	Geometry          Geometry
	SlideSelector     string
	NavigationTimeout time.Duration
	IdleWindow        time.Duration
	PrintBackground   *bool
	PreferCSSPageSize *bool
	ExternalAssets    AssetPolicy
	Verify            bool
}

// PageSize is a page size in PDF points.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Result describes a completed export.
type Result struct {
	RunID      string        `json:"run_id"`
	Source     string        `json:"source"`
	Output     string        `json:"output"`
	Engine     string        `json:"engine"`
	Slides     int           `json:"slides"`
	Pages      int           `json:"pages"`
	PageSizes  []PageSize    `json:"page_sizes,omitempty"`
	Bytes      int64         `json:"bytes"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// LoadOptions configures how a session loads the document.
type LoadOptions struct {
	URL            string
	Geometry       Geometry
	Timeout        time.Duration
	IdleWindow     time.Duration
	ExternalAssets AssetPolicy
}

// PrintOptions configures the paginated capture.
type PrintOptions struct {
	Geometry          Geometry
	PrintBackground   bool
	PreferCSSPageSize bool
}

// Session is a loaded browser tab owned by a single export.
type Session interface {
	// Load navigates to the document and blocks until the network is quiescent.
	Load(ctx context.Context, opts LoadOptions) error
	// CountSlides returns the number of elements matching selector.
	CountSlides(ctx context.Context, selector string) (int, error)
	// Print captures the loaded document as PDF bytes.
	Print(ctx context.Context, opts PrintOptions) ([]byte, error)
}

// Engine acquires a browser for the lifetime of fn. Implementations must release
// the browser before Session returns, whatever fn returns.
type Engine interface {
	Name() string
	Session(ctx context.Context, fn func(ctx context.Context, s Session) error) error
}

// ArtifactStore persists export artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, path string, r io.Reader) (int64, error)
	Remove(ctx context.Context, path string) error
}

// Report describes an inspected artifact.
type Report struct {
	Pages     int        `json:"pages"`
	PageSizes []PageSize `json:"page_sizes"`
}

// Inspector reads page geometry back from an artifact.
type Inspector interface {
	Inspect(ctx context.Context, path string) (Report, error)
}

// RunState describes the lifecycle state of a recorded run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunRecord is a persisted export run.
type RunRecord struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Output      string    `json:"output"`
	Engine      string    `json:"engine"`
	State       RunState  `json:"state"`
	Slides      int       `json:"slides"`
	Pages       int       `json:"pages"`
	Bytes       int64     `json:"bytes"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// RunFilter narrows history queries.
type RunFilter struct {
	State  RunState
	Source string
	Since  time.Time
	Limit  int
}

// Tracker records export runs.
type Tracker interface {
	Start(ctx context.Context, record RunRecord) (string, error)
	Complete(ctx context.Context, id string, result Result) error
	Fail(ctx context.Context, id string, err error) error
	Status(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
