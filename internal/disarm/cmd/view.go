package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/spf13/cobra"

	"disarm/disasm"
	"disarm/internal/analysis"
	"disarm/internal/disarm/styles"
	"disarm/internal/elfx"
	"disarm/internal/ui/colorize"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewSymbols
	viewReport
)

func newViewCmd(a *app) *cobra.Command {
	in := &inputFlags{}

	cmd := &cobra.Command{
		Use:   "view [hex...]",
		Short: "Browse a listing, its symbols and its report interactively",
		Example: `
# Browse the .text section of a shared library
disarm view --elf libfoo.so
  `,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			m := newModel(h, rs, src)
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
	in.register(cmd.Flags(), false)
	return cmd
}

type symbolItem struct {
	sym       elfx.Symbol
	demangled string
}

func (i symbolItem) Title() string       { return fmt.Sprintf("%x  %s", i.sym.Addr, i.demangled) }
func (i symbolItem) Description() string { return "" }
func (i symbolItem) FilterValue() string { return fmt.Sprintf("%x %s", i.sym.Addr, i.demangled) }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}
	indicator, name := " ", i.demangled
	addrStyle := styles.Muted
	if index == m.Index() {
		indicator = ">"
		addrStyle = styles.Selected
		name = styles.Selected.Render(name)
	}
	fmt.Fprintf(w, " %s  %s  %s", indicator, addrStyle.Render(fmt.Sprintf("%x", i.sym.Addr)), name)
}

type model struct {
	viewport    viewport.Model
	symbolsList list.Model
	reportView  viewport.Model
	spinner     spinner.Model
	mode        viewMode

	handle *disasm.Handle
	src    *source
	rs     *disasm.ResultSet
	title  string

	decoding string // symbol being decoded, "" when idle
	err      error
	width    int
	height   int
}

// symbolDecodedMsg carries the listing and report for a selected symbol.
type symbolDecodedMsg struct {
	name    string
	listing string
	report  string
	err     error
}

func newModel(h *disasm.Handle, rs *disasm.ResultSet, src *source) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(24)

	rv := viewport.New()
	rv.SetWidth(80)
	rv.SetHeight(24)

	symbolsList := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	symbolsList.SetShowStatusBar(false)
	symbolsList.SetFilteringEnabled(true)
	symbolsList.Styles.Title = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).MarginLeft(2)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Selected

	m := model{
		viewport:    vp,
		symbolsList: symbolsList,
		reportView:  rv,
		spinner:     s,
		mode:        viewListing,
		handle:      h,
		src:         src,
		rs:          rs,
		title:       src.name,
		width:       80,
		height:      24,
	}
	m.loadSymbols()
	m.setListing(renderListing(h, rs, src))
	m.reportView.SetContent(renderReport(summaryFor(h, rs, src), m.width))
	return m
}

// renderReport renders report markdown for the pager, falling back to the
// raw text if glamour fails.
func renderReport(md string, width int) string {
	r, err := styles.GetMarkdownRenderer(max(width-2, 20), styles.ThemeCharm)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSuffix(out, "\n")
}

func (m *model) loadSymbols() {
	if m.src.img == nil {
		return
	}
	var items []list.Item
	for _, s := range m.src.img.Symbols() {
		if !s.Func || s.Size == 0 || s.Thumb {
			continue
		}
		items = append(items, symbolItem{sym: s, demangled: analysis.CachedDemangle(s.Name)})
	}
	m.symbolsList.SetItems(items)
	m.symbolsList.Title = fmt.Sprintf("Symbols (%d total)", len(items))
}

func (m model) hasSymbols() bool { return len(m.symbolsList.Items()) > 0 }

func (m *model) setListing(s string) {
	m.viewport.SetContent(s)
	m.viewport.GotoTop()
}

// renderListing formats an annotated, colorized listing.
func renderListing(h *disasm.Handle, rs *disasm.ResultSet, src *source) string {
	var b strings.Builder
	for _, line := range analysis.Annotate(rs, h, src.image()) {
		b.WriteString(colorize.InstructionLine(line.String()))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// decodeSymbolCmd decodes a symbol off the UI goroutine.
func decodeSymbolCmd(h *disasm.Handle, src *source, sym elfx.Symbol) tea.Cmd {
	return func() tea.Msg {
		name := analysis.CachedDemangle(sym.Name)
		code, err := src.img.SymbolBytes(sym)
		if err != nil {
			return symbolDecodedMsg{name: name, err: err}
		}
		rs, err := h.DecodeAll(code, sym.Addr)
		if err != nil {
			return symbolDecodedMsg{name: name, err: err}
		}
		sub := &source{name: name, mode: src.mode, code: code, addr: sym.Addr, img: src.img}
		return symbolDecodedMsg{
			name:    name,
			listing: renderListing(h, rs, sub),
			report:  summaryFor(h, rs, sub),
		}
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case symbolDecodedMsg:
		m.decoding = ""
		m.err = msg.err
		if msg.err == nil {
			m.title = msg.name
			m.setListing(msg.listing)
			m.reportView.SetContent(renderReport(msg.report, m.width))
			m.reportView.GotoTop()
			m.mode = viewListing
		}
		return m, nil

	case spinner.TickMsg:
		if m.decoding == "" {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.symbolsList.SetWidth(msg.Width)
			m.symbolsList.SetHeight(msg.Height - 2)
			m.reportView.SetWidth(msg.Width)
			m.reportView.SetHeight(msg.Height - 2)
		}
		return m, nil

	case tea.KeyMsg:
		filtering := m.mode == viewSymbols && m.symbolsList.FilterState() == list.Filtering
		switch msg.String() {
		case "q", "ctrl+c":
			if !filtering || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		}
		if !filtering {
			if next, handled, c := m.handleKey(msg.String()); handled {
				return next, c
			}
		}
	}

	switch m.mode {
	case viewSymbols:
		m.symbolsList, cmd = m.symbolsList.Update(msg)
	case viewReport:
		m.reportView, cmd = m.reportView.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) handleKey(key string) (model, bool, tea.Cmd) {
	switch key {
	case "l":
		m.mode = viewListing
	case "s":
		if m.hasSymbols() {
			m.mode = viewSymbols
		}
	case "r":
		m.mode = viewReport
	case "tab":
		m.mode = m.nextMode(1)
	case "shift+tab":
		m.mode = m.nextMode(-1)
	case "enter":
		if m.mode != viewSymbols || m.decoding != "" {
			return m, true, nil
		}
		item, ok := m.symbolsList.SelectedItem().(symbolItem)
		if !ok {
			return m, true, nil
		}
		m.decoding = item.demangled
		m.err = nil
		return m, true, tea.Batch(decodeSymbolCmd(m.handle, m.src, item.sym), m.spinner.Tick)
	default:
		return m, false, nil
	}
	return m, true, nil
}

// nextMode cycles through the views, skipping symbols when there are none.
func (m model) nextMode(step int) viewMode {
	modes := []viewMode{viewListing, viewReport}
	if m.hasSymbols() {
		modes = []viewMode{viewListing, viewSymbols, viewReport}
	}
	cur := 0
	for i, v := range modes {
		if v == m.mode {
			cur = i
		}
	}
	return modes[(cur+step+len(modes))%len(modes)]
}

func (m model) View() string {
	var content string
	switch m.mode {
	case viewSymbols:
		content = m.symbolsList.View()
	case viewReport:
		content = m.reportView.View()
	default:
		content = m.viewport.View()
	}

	var menu string
	switch {
	case m.decoding != "":
		menu = fmt.Sprintf("%s Decoding %s...", m.spinner.View(), m.decoding)
	case m.err != nil:
		menu = styles.Error.Render(m.err.Error())
	case m.mode == viewSymbols:
		menu = " Enter: disassemble • L: listing • R: report • Tab: cycle • Q: quit "
	case m.hasSymbols():
		menu = fmt.Sprintf(" %s • S: symbols • L: listing • R: report • Tab: cycle • Q: quit ", m.title)
	default:
		menu = fmt.Sprintf(" %s • L: listing • R: report • Tab: cycle • Q: quit ", m.title)
	}
	return content + "\n" + styles.MenuBar.Width(m.width).Render(menu)
}
