package present

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed assets/*
var embeddedAssets embed.FS

// AssetsFS exposes the embedded presentation assets.
func AssetsFS() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		// This should never happen because the directory is embedded at build time.
		panic(fmt.Errorf("present: failed to prepare embedded assets: %w", err))
	}
	return sub
}

func readAsset(name string) ([]byte, error) {
	return fs.ReadFile(AssetsFS(), name)
}
