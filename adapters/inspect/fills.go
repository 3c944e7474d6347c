package exportinspect

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/goliatone/go-deck-export/export"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Color is a DeviceRGB fill colour with components in [0,1].
type Color struct {
	R, G, B float64
}

// ParseHexColor parses #rrggbb.
func ParseHexColor(value string) (Color, error) {
	if len(value) != 7 || value[0] != '#' {
		return Color{}, export.NewError(export.KindValidation, fmt.Sprintf("invalid colour %q", value), nil)
	}
	rgb, err := strconv.ParseUint(value[1:], 16, 32)
	if err != nil {
		return Color{}, export.NewError(export.KindValidation, fmt.Sprintf("invalid colour %q", value), err)
	}
	return Color{
		R: float64(rgb>>16&0xff) / 255,
		G: float64(rgb>>8&0xff) / 255,
		B: float64(rgb&0xff) / 255,
	}, nil
}

// Hex formats the colour as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

// Near reports whether both colours round to within tolerance per channel.
func (c Color) Near(other Color, tolerance float64) bool {
	return math.Abs(c.R-other.R) <= tolerance &&
		math.Abs(c.G-other.G) <= tolerance &&
		math.Abs(c.B-other.B) <= tolerance
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

var rgFill = regexp.MustCompile(`(?:^|\s)([0-9]*\.?[0-9]+)\s+([0-9]*\.?[0-9]+)\s+([0-9]*\.?[0-9]+)\s+rg\b`)

// FillColors returns the distinct non-white DeviceRGB fill colours used in the
// page content streams of the artifact at path, per page.
func (i *Inspector) FillColors(ctx context.Context, path string) ([][]Color, error) {
	if err := ctx.Err(); err != nil {
		return nil, export.NewError(export.KindCanceled, "inspect canceled", err)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", path), err)
		}
		return nil, export.NewError(export.KindVerification, fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	dir, err := os.MkdirTemp("", "deck-content-*")
	if err != nil {
		return nil, export.NewError(export.KindEnvironment, "create content directory", err)
	}
	defer os.RemoveAll(dir)

	if err := api.ExtractContent(file, dir, "deck", nil, i.config()); err != nil {
		return nil, export.NewError(export.KindVerification, "extract page content", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, export.NewError(export.KindVerification, "read page content", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(a, b int) bool { return pageOrder(names[a]) < pageOrder(names[b]) })

	pages := make([][]Color, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, export.NewError(export.KindVerification, "read page content", err)
		}
		pages = append(pages, parseFills(string(data)))
	}
	return pages, nil
}

var pageNumber = regexp.MustCompile(`(\d+)\D*$`)

func pageOrder(name string) int {
	match := pageNumber.FindStringSubmatch(name)
	if match == nil {
		return 0
	}
	n, _ := strconv.Atoi(match[1])
	return n
}

func parseFills(content string) []Color {
	white := Color{R: 1, G: 1, B: 1}
	seen := map[string]struct{}{}
	var fills []Color
	for _, match := range rgFill.FindAllStringSubmatch(content, -1) {
		var c Color
		var err error
		if c.R, err = strconv.ParseFloat(match[1], 64); err != nil {
			continue
		}
		if c.G, err = strconv.ParseFloat(match[2], 64); err != nil {
			continue
		}
		if c.B, err = strconv.ParseFloat(match[3], 64); err != nil {
			continue
		}
		if c.Near(white, 0.5/255) {
			continue
		}
		key := c.Hex()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fills = append(fills, c)
	}
	return fills
}
