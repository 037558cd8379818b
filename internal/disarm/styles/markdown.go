// Package styles holds the colours and glamour themes used by disarm's
// report and pager output.
package styles

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/x/exp/charmtone"
)

// Theme selects a markdown palette.
type Theme int

const (
	ThemeCharm Theme = iota
	ThemeVSCode
)

func (t Theme) String() string {
	switch t {
	case ThemeCharm:
		return "charm"
	case ThemeVSCode:
		return "vscode"
	}
	return fmt.Sprintf("Theme(%d)", int(t))
}

// ParseTheme maps a theme name back to its value.
func ParseTheme(s string) (Theme, error) {
	switch s {
	case "", "charm":
		return ThemeCharm, nil
	case "vscode":
		return ThemeVSCode, nil
	}
	return 0, fmt.Errorf("unknown theme %q (want charm or vscode)", s)
}

// palette is the handful of colours a report uses.
type palette struct {
	text, heading, title, titleBg string
	code, codeBlock, rule, link   string
	quote                         string
}

// VS Code dark theme colors
const (
	VSCodeForeground  = "#D4D4D4"
	VSCodeLink        = "#4FC1FF"
	VSCodeInlineCode  = "#EACD53"
	VSCodeComment     = "#6A9955"
	VSCodeHeading     = "#569CD6"
	VSCodeLineNumber  = "#858585"
	VSCodeCodeBlockBg = "#1E1E1E"
)

func (t Theme) palette() palette {
	if t == ThemeVSCode {
		return palette{
			text:      VSCodeForeground,
			heading:   VSCodeHeading,
			title:     VSCodeHeading,
			code:      VSCodeInlineCode,
			codeBlock: VSCodeForeground,
			rule:      VSCodeLineNumber,
			link:      VSCodeLink,
			quote:     VSCodeComment,
		}
	}
	return palette{
		text:      charmtone.Smoke.Hex(),
		heading:   charmtone.Malibu.Hex(),
		title:     charmtone.Zest.Hex(),
		titleBg:   charmtone.Charple.Hex(),
		code:      charmtone.Malibu.Hex(),
		codeBlock: charmtone.Squid.Hex(),
		rule:      charmtone.Charcoal.Hex(),
		link:      charmtone.Guac.Hex(),
		quote:     charmtone.Squid.Hex(),
	}
}

func ptr[T any](v T) *T { return &v }

// MarkdownStyle returns the glamour style for a theme. Reports are mostly
// headings, tables and an assembly code block, so only those are tuned.
func MarkdownStyle(t Theme) ansi.StyleConfig {
	p := t.palette()
	heading := func(prefix string) ansi.StyleBlock {
		return ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: prefix, Color: ptr(p.heading)}}
	}
	h1 := ansi.StylePrimitive{Prefix: " ", Suffix: " ", Color: ptr(p.title), Bold: ptr(true)}
	if p.titleBg != "" {
		h1.BackgroundColor = ptr(p.titleBg)
	}

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: ptr(p.text)},
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: ptr(p.quote), Italic: ptr(true)},
			Indent:         ptr(uint(1)),
			IndentToken:    ptr("│ "),
		},
		List: ansi.StyleList{LevelIndent: 2},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{BlockSuffix: "\n", Color: ptr(p.heading), Bold: ptr(true)},
		},
		H1:             ansi.StyleBlock{StylePrimitive: h1},
		H2:             heading("## "),
		H3:             heading("### "),
		H4:             heading("#### "),
		Strong:         ansi.StylePrimitive{Bold: ptr(true)},
		Emph:           ansi.StylePrimitive{Italic: ptr(true)},
		HorizontalRule: ansi.StylePrimitive{Color: ptr(p.rule), Format: "\n--------\n"},
		Item:           ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration:    ansi.StylePrimitive{BlockPrefix: ". "},
		Link:           ansi.StylePrimitive{Color: ptr(p.link), Underline: ptr(true)},
		LinkText:       ansi.StylePrimitive{Color: ptr(p.link), Bold: ptr(true)},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: ptr(p.code)},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: ptr(p.codeBlock)},
				Margin:         ptr(uint(2)),
			},
		},
		Table: ansi.StyleTable{
			StyleBlock:      ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Color: ptr(p.text)}},
			CenterSeparator: ptr("┼"),
			ColumnSeparator: ptr("│"),
			RowSeparator:    ptr("─"),
		},
	}
}

// GetMarkdownRenderer returns a glamour TermRenderer that wraps prose at
// width. Code blocks are preserved by glamour.
func GetMarkdownRenderer(width int, t Theme) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithStyles(MarkdownStyle(t)),
		glamour.WithWordWrap(width),
	)
}
