package export

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// NormalizeRequest applies defaults and validates a request. Paths are made
// absolute so the browser and the store agree on the same files.
func NormalizeRequest(req Request) (Request, error) {
	if strings.TrimSpace(req.Source) == "" {
		req.Source = DefaultSource
	}
	if strings.TrimSpace(req.Output) == "" {
		req.Output = DefaultOutput
	}
	if req.Geometry.IsZero() {
		req.Geometry = DefaultGeometry
	}
	if err := req.Geometry.Validate(); err != nil {
		return Request{}, err
	}
	if strings.TrimSpace(req.SlideSelector) == "" {
		req.SlideSelector = DefaultSlideSelector
	}
	if req.NavigationTimeout < 0 || req.IdleWindow < 0 {
		return Request{}, NewError(KindValidation, "timeouts must not be negative", nil)
	}
	if req.NavigationTimeout == 0 {
		req.NavigationTimeout = DefaultNavigationTimeout
	}
	if req.IdleWindow == 0 {
		req.IdleWindow = DefaultIdleWindow
	}
	if req.IdleWindow >= req.NavigationTimeout {
		return Request{}, NewError(KindValidation, "idle window must be shorter than the navigation timeout", nil)
	}
	if req.PrintBackground == nil {
		req.PrintBackground = boolPtr(true)
	}
	if req.PreferCSSPageSize == nil {
		req.PreferCSSPageSize = boolPtr(true)
	}
	switch req.ExternalAssets {
	case "":
		req.ExternalAssets = AssetsAllow
	case AssetsAllow, AssetsBlock:
	default:
		return Request{}, NewError(KindValidation, fmt.Sprintf("unknown external assets policy: %s", req.ExternalAssets), nil)
	}

	source, err := filepath.Abs(req.Source)
	if err != nil {
		return Request{}, NewError(KindValidation, "invalid source path", err)
	}
	output, err := filepath.Abs(req.Output)
	if err != nil {
		return Request{}, NewError(KindValidation, "invalid output path", err)
	}
	if source == output {
		return Request{}, NewError(KindValidation, "output would overwrite the source document", nil)
	}

	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return Request{}, NewError(KindNavigation, fmt.Sprintf("presentation %q not found", req.Source), err)
		}
		return Request{}, NewError(KindNavigation, fmt.Sprintf("presentation %q is not readable", req.Source), err)
	}
	if info.IsDir() {
		return Request{}, NewError(KindValidation, fmt.Sprintf("presentation %q is a directory", req.Source), nil)
	}

	req.Source = source
	req.Output = output
	return req, nil
}

// FileURL returns the file:// URL for an absolute path.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}

// BoolValue dereferences an optional flag.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func boolPtr(value bool) *bool {
	return &value
}
