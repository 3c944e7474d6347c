// Package export converts self-contained HTML slide decks into paginated PDF
// artifacts.
//
// An Exporter drives a browser Engine through one linear sequence: acquire a
// scoped Session, load the document with a viewport equal to the slide Geometry,
// block until the network is quiescent, capture the document with a page size
// equal to the Geometry, then persist the artifact through an ArtifactStore.
// Inspector and Tracker are optional and verify the artifact and record the run.
//
// Engines live under adapters/ (chromium via chromedp, rod via go-rod).
package export
