package present

import (
	"strings"
	"testing"

	"github.com/goliatone/go-deck-export/export"
)

func TestInjectScript(t *testing.T) {
	tag := ScriptTag(ScriptPath, ".slide", export.DefaultGeometry)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "before body", input: "<html><body><p>x</p></BODY></html>", want: "<p>x</p>" + tag + "</BODY>"},
		{name: "before html", input: "<html><p>x</p></html>", want: "<p>x</p>" + tag + "</html>"},
		{name: "fragment", input: "<p>x</p>", want: "<p>x</p>" + tag},
	}
	for _, tc := range tests {
		got := string(InjectScript([]byte(tc.input), ScriptPath, tag))
		if !strings.Contains(got, tc.want) {
			t.Fatalf("%s: expected %q in %q", tc.name, tc.want, got)
		}
	}

	already := "<html><body><script src=\"/_deck/present.js\"></script></body></html>"
	if got := string(InjectScript([]byte(already), ScriptPath, tag)); got != already {
		t.Fatalf("expected unchanged document, got %q", got)
	}
}

func TestScriptTag_Escapes(t *testing.T) {
	tag := ScriptTag(ScriptPath, `[data-x="1"]`, export.Geometry{Width: 1280, Height: 720})
	if !strings.Contains(tag, `data-selector="[data-x=&#34;1&#34;]"`) || !strings.Contains(tag, `data-height="720"`) {
		t.Fatalf("unexpected tag %s", tag)
	}
}
