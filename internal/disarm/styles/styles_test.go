package styles

import (
	"strings"
	"testing"
)

func TestParseTheme(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Theme
		ok   bool
	}{
		{"", ThemeCharm, true},
		{"charm", ThemeCharm, true},
		{"vscode", ThemeVSCode, true},
		{"solarized", 0, false},
	} {
		got, err := ParseTheme(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseTheme(%q) = %s, %v", tt.in, got, err)
		}
	}
}

func TestMarkdownRenderer(t *testing.T) {
	for _, theme := range []Theme{ThemeCharm, ThemeVSCode} {
		t.Run(theme.String(), func(t *testing.T) {
			r, err := GetMarkdownRenderer(80, theme)
			if err != nil {
				t.Fatal(err)
			}
			out, err := r.Render("# report\n\n| group | count |\n|---|---|\n| jump | 3 |\n")
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, "report") || !strings.Contains(out, "jump") {
				t.Errorf("rendered output missing content: %q", out)
			}
		})
	}
}
