package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

var (
	// MenuBar is the pager's bottom bar; set its width before rendering.
	MenuBar = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(charmtone.Zest.Hex())).
		Background(lipgloss.Color(charmtone.Charple.Hex())).
		Padding(0, 1)

	Selected = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Malibu.Hex())).Bold(true)
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Squid.Hex()))
	Error    = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Cheeky.Hex())).Bold(true)
	OK       = lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Guac.Hex()))
)
