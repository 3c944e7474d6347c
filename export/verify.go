package export

import "fmt"

// PageTolerance is the allowed difference in points between a page and the
// slide geometry. Chromium rounds paper sizes to whole device units.
const PageTolerance = 1.0

// VerifyReport checks that an artifact has one page per slide and that every page
// has the slide geometry. A slide count of zero means the selector matched
// nothing; only the page geometry is checked then.
func VerifyReport(report Report, geometry Geometry, slides int) error {
	if report.Pages <= 0 {
		return NewError(KindVerification, "artifact has no pages", nil)
	}
	if slides > 0 && report.Pages != slides {
		return NewError(KindVerification, fmt.Sprintf("artifact has %d page(s), document has %d slide(s)", report.Pages, slides), nil)
	}
	if len(report.PageSizes) != report.Pages {
		return NewError(KindVerification, fmt.Sprintf("artifact reports %d page size(s) for %d page(s)", len(report.PageSizes), report.Pages), nil)
	}
	want := geometry.Points()
	for i, size := range report.PageSizes {
		if !geometry.Matches(size, PageTolerance) {
			return NewError(KindVerification, fmt.Sprintf("page %d is %.2fx%.2fpt, want %.2fx%.2fpt", i+1, size.Width, size.Height, want.Width, want.Height), nil)
		}
	}
	return nil
}

// Verify checks the report against the requested geometry and slide count.
func (r Report) Verify(geometry Geometry, slides int) error {
	return VerifyReport(r, geometry, slides)
}
