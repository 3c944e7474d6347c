package present

import (
	"fmt"
	"html"
	"strings"

	"github.com/goliatone/go-deck-export/export"
)

// ScriptTag returns the tag that loads the navigation script for a deck.
func ScriptTag(src, selector string, geometry export.Geometry) string {
	return fmt.Sprintf(`<script src="%s" data-selector="%s" data-width="%d" data-height="%d" defer></script>`,
		html.EscapeString(src), html.EscapeString(selector), geometry.Width, geometry.Height)
}

// InjectScript inserts tag before </body>, before </html>, or at the end of the
// document. Documents that already reference src are returned unchanged.
func InjectScript(htmlInput []byte, src, tag string) []byte {
	if strings.TrimSpace(tag) == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if src != "" && strings.Contains(lower, strings.ToLower(src)) {
		return htmlInput
	}

	for _, closing := range []string{"</body", "</html"} {
		if idx := strings.LastIndex(lower, closing); idx >= 0 {
			return append(append(append([]byte{}, htmlInput[:idx]...), tag...), htmlInput[idx:]...)
		}
	}
	return append(append([]byte{}, htmlInput...), tag...)
}
