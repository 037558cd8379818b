// Package colorize highlights disassembly listings for terminals with
// chroma. Colors are off when DISARM_NO_COLOR is set.
package colorize

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// EnvNoColor disables highlighting when set to any non-empty value.
const EnvNoColor = "DISARM_NO_COLOR"

var disabled atomic.Bool

// SetEnabled turns highlighting on or off for the whole process.
func SetEnabled(on bool) { disabled.Store(!on) }

// Enabled reports whether highlighting is active.
func Enabled() bool {
	return !disabled.Load() && os.Getenv(EnvNoColor) == ""
}

// getAssemblyLexer returns an appropriate assembly lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	for _, name := range []string{"armasm", "gas", "nasm"} {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

func getDisasmStyle() *chroma.Style {
	for _, name := range []string{DisasmDark.Name, "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Assembly highlights a block of assembly text.
func Assembly(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}
	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

const (
	addrColor    = "\033[38;2;79;79;79m"
	labelColor   = "\033[38;2;255;215;0m"
	commentColor = "\033[38;2;235;194;237m"
	reset        = "\033[0m"
)

// InstructionLine colorizes one formatted listing line, as produced by
// analysis.AnnotatedInst.String, keeping its column layout: the address
// in gray, the instruction through chroma, annotations after " ; " in
// pink, and label lines in gold.
func InstructionLine(line string) string {
	if !Enabled() {
		return line
	}

	addr, rest, ok := strings.Cut(line, " ")
	if !ok || !isHex(addr) {
		return colorizeFragment(line)
	}
	if strings.HasSuffix(rest, ":") {
		return fmt.Sprintf("%s%s%s %s%s%s", addrColor, addr, reset, labelColor, rest, reset)
	}

	insn, comment, hasComment := strings.Cut(rest, " ; ")
	out := fmt.Sprintf("%s%s%s %s", addrColor, addr, reset, colorizeFragment(insn))
	if hasComment {
		out += fmt.Sprintf(" %s; %s%s", commentColor, comment, reset)
	}
	return out
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// colorizeFragment runs chroma over part of a line. Lexers that ensure a
// trailing newline would break the column layout, so single lines lose it.
func colorizeFragment(s string) string {
	out, err := Assembly(s)
	if err != nil {
		return s
	}
	if !strings.Contains(s, "\n") {
		out = strings.ReplaceAll(out, "\n", "")
	}
	return out
}

// Strip removes ANSI escape sequences.
func Strip(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
