package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"disarm/disasm"
	"disarm/internal/analysis"
	"disarm/internal/disarm/styles"
)

const defaultReportWidth = 100

func newReportCmd(a *app) *cobra.Command {
	in := &inputFlags{}
	var theme string
	var raw bool

	cmd := &cobra.Command{
		Use:   "report [hex...]",
		Short: "Summarize decoded code as a markdown report",
		Long: `Report decodes the input and prints instruction, group and mnemonic
counts, the functions called, and the annotated listing. On a terminal the
markdown is rendered; otherwise it is printed as-is.`,
		Example: `
# Report on a function in a shared library
disarm report --elf libfoo.so --symbol JNI_OnLoad

# Summary as JSON
disarm report --json fd7bbfa9 fd030091 c0035fd6
  `,
		RunE: func(cmd *cobra.Command, args []string) error {
			th, err := styles.ParseTheme(theme)
			if err != nil {
				return err
			}
			src, err := a.load(cmd, args, in)
			if err != nil {
				return err
			}
			defer src.Close()

			h, rs, err := a.decode(src)
			if err != nil {
				return err
			}
			defer h.Close()

			sum := analysis.Summarize(rs, h, src.image(), src.addr, len(src.code))
			out := cmd.OutOrStdout()
			if in.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}

			md := reportMarkdown(src.name, sum, analysis.Annotate(rs, h, src.image()))
			if raw || !isTerminal(out) {
				_, err := io.WriteString(out, md)
				return err
			}
			return renderMarkdown(out, md, th)
		},
	}
	in.register(cmd.Flags(), false)
	cmd.Flags().StringVar(&theme, "theme", "charm", "Markdown theme: charm or vscode")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without rendering")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func renderMarkdown(w io.Writer, md string, th styles.Theme) error {
	width := defaultReportWidth
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(f.Fd()); err == nil && tw > 0 {
			width = min(tw, defaultReportWidth)
		}
	}
	r, err := styles.GetMarkdownRenderer(width, th)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, rendered)
	return err
}

// reportMarkdown lays out a summary and listing as markdown.
func reportMarkdown(name string, s analysis.Summary, listing []analysis.AnnotatedInst) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "- **Mode:** %s\n", s.Mode)
	fmt.Fprintf(&b, "- **Range:** `%#x`-`%#x`\n", s.Start, s.End)
	fmt.Fprintf(&b, "- **Instructions:** %d (%d bytes)\n", s.Instructions, s.Bytes)
	if s.Undecoded > 0 {
		fmt.Fprintf(&b, "- **Undecoded:** %d trailing bytes\n", s.Undecoded)
	}

	countTable(&b, "Groups", "group", s.Groups)
	countTable(&b, "Top mnemonics", "mnemonic", s.Mnemonics)

	if len(s.Calls) > 0 {
		b.WriteString("\n## Calls\n\n")
		for _, c := range s.Calls {
			fmt.Fprintf(&b, "- `%s`\n", c)
		}
	}

	b.WriteString("\n## Listing\n\n```asm\n")
	for _, line := range listing {
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	b.WriteString("```\n")
	return b.String()
}

func countTable(b *strings.Builder, title, col string, counts []analysis.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n| %s | count |\n|---|---:|\n", title, col)
	for _, c := range counts {
		fmt.Fprintf(b, "| %s | %d |\n", c.Name, c.Count)
	}
}

// summaryFor is the report for an already decoded set.
func summaryFor(h *disasm.Handle, rs *disasm.ResultSet, src *source) string {
	sum := analysis.Summarize(rs, h, src.image(), src.addr, len(src.code))
	return reportMarkdown(src.name, sum, analysis.Annotate(rs, h, src.image()))
}
