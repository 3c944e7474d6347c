package export

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// CSS reference pixels per inch and PDF points per CSS pixel.
const (
	PixelsPerInch  = 96.0
	PointsPerPixel = 0.75
)

// DefaultGeometry is the authored slide canvas.
var DefaultGeometry = Geometry{Width: 1024, Height: 576}

var lengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

// Geometry is a slide panel size in CSS pixels.
type Geometry struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// IsZero reports whether no dimension was set.
func (g Geometry) IsZero() bool {
	return g.Width == 0 && g.Height == 0
}

// Validate checks that both dimensions are positive.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return NewError(KindValidation, fmt.Sprintf("invalid slide geometry %dx%d", g.Width, g.Height), nil)
	}
	return nil
}

// PaperInches returns the paper size for a capture request.
func (g Geometry) PaperInches() (width, height float64) {
	return float64(g.Width) / PixelsPerInch, float64(g.Height) / PixelsPerInch
}

// Points returns the expected PDF page size.
func (g Geometry) Points() PageSize {
	return PageSize{
		Width:  float64(g.Width) * PointsPerPixel,
		Height: float64(g.Height) * PointsPerPixel,
	}
}

// Matches reports whether size equals the geometry within tolerance points.
func (g Geometry) Matches(size PageSize, tolerance float64) bool {
	want := g.Points()
	return math.Abs(want.Width-size.Width) <= tolerance && math.Abs(want.Height-size.Height) <= tolerance
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// ParseGeometry parses "WIDTHxHEIGHT" where each side is a length accepted by
// ParseLength. Bare numbers are pixels.
func ParseGeometry(value string) (Geometry, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	// "px" contains the separator, so try every split point.
	for i := 0; i < len(normalized); i++ {
		if normalized[i] != 'x' {
			continue
		}
		width, err := ParseLengthPixels(normalized[:i])
		if err != nil {
			continue
		}
		height, err := ParseLengthPixels(normalized[i+1:])
		if err != nil {
			continue
		}
		g := Geometry{Width: width, Height: height}
		return g, g.Validate()
	}
	return Geometry{}, NewError(KindValidation, fmt.Sprintf("invalid geometry: %s", value), nil)
}

// ParseLengthPixels converts a length to whole CSS pixels. Bare numbers are pixels.
func ParseLengthPixels(value string) (int, error) {
	if matches := lengthPattern.FindStringSubmatch(value); len(matches) == 3 && matches[2] == "" {
		value += "px"
	}
	inches, err := ParseLength(value)
	if err != nil {
		return 0, err
	}
	return int(math.Round(inches * PixelsPerInch)), nil
}

// ParseLength converts a CSS length to inches. Bare numbers are inches.
func ParseLength(value string) (float64, error) {
	matches := lengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, NewError(KindValidation, fmt.Sprintf("invalid length: %s", value), nil)
	}

	raw := matches[1]
	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "in"
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, NewError(KindValidation, fmt.Sprintf("invalid length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / PixelsPerInch, nil
	default:
		return 0, NewError(KindValidation, fmt.Sprintf("unsupported length unit: %s", unit), nil)
	}
}
