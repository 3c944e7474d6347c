// Package exportinspect reads page geometry back from exported PDF artifacts
// using pdfcpu.
package exportinspect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goliatone/go-deck-export/export"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var disableConfigDir sync.Once

// Inspector reports page count and page sizes of a PDF.
type Inspector struct {
	Config *model.Configuration
}

// NewInspector creates an inspector that never writes a pdfcpu config directory.
func NewInspector() *Inspector {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Inspector{}
}

// Inspect reads the artifact at path.
func (i *Inspector) Inspect(ctx context.Context, path string) (export.Report, error) {
	if err := ctx.Err(); err != nil {
		return export.Report{}, export.NewError(export.KindCanceled, "inspect canceled", err)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return export.Report{}, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", path), err)
		}
		return export.Report{}, export.NewError(export.KindVerification, fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()
	return i.inspect(file)
}

// InspectBytes reads an in-memory artifact.
func (i *Inspector) InspectBytes(data []byte) (export.Report, error) {
	return i.inspect(bytes.NewReader(data))
}

func (i *Inspector) inspect(rs io.ReadSeeker) (export.Report, error) {
	dims, err := api.PageDims(rs, i.config())
	if err != nil {
		return export.Report{}, export.NewError(export.KindVerification, "read pdf page sizes", err)
	}
	return reportFromDims(dims), nil
}

func (i *Inspector) config() *model.Configuration {
	if i != nil && i.Config != nil {
		return i.Config
	}
	return model.NewDefaultConfiguration()
}

func reportFromDims(dims []types.Dim) export.Report {
	report := export.Report{
		Pages:     len(dims),
		PageSizes: make([]export.PageSize, 0, len(dims)),
	}
	for _, dim := range dims {
		report.PageSizes = append(report.PageSizes, export.PageSize{Width: dim.Width, Height: dim.Height})
	}
	return report
}
