// Package exportchromium provides a chromedp-backed browser engine for
// go-deck-export.
//
// Every Session launches its own headless Chromium process and tears it down
// before returning, so a browser never outlives the export that started it.
// Network quiescence is taken from Chromium's networkIdle lifecycle event for the
// main frame's navigation.
package exportchromium
