package exportchromium

import (
	"github.com/chromedp/cdproto/page"
	"github.com/goliatone/go-deck-export/export"
)

// fallbackPageStyleScript inserts a zero-margin @page rule ahead of every authored
// stylesheet. PrintToPDF drops zero margins from the request, and an authored
// @page rule later in the cascade still wins.
const fallbackPageStyleScript = `(() => {
  if (document.getElementById("deck-export-page-fallback")) { return; }
  const style = document.createElement("style");
  style.id = "deck-export-page-fallback";
  style.textContent = "@page { margin: 0; }";
  const head = document.head || document.documentElement;
  head.insertBefore(style, head.firstChild);
})()`

func buildPrintToPDFParams(opts export.PrintOptions) *page.PrintToPDFParams {
	width, height := opts.Geometry.PaperInches()
	params := page.PrintToPDF().
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithScale(1).
		WithPrintBackground(opts.PrintBackground)
	if opts.PreferCSSPageSize {
		params = params.WithPreferCSSPageSize(true)
	}
	return params
}
