package render

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

const (
	// Column widths include one space of padding on each side.
	dateWidth       = 14
	authorWidth     = 18
	defaultWidth    = 80
	minMessageWidth = 20

	// Vertical border characters of a three column table.
	tableBorders = 4
)

// palette picks a stable color per merge request, keyed by iid.
var palette = []lipgloss.Color{
	"2", "3", "4", "5", "6", "7", "8", "10", "11", "12", "13", "14", "15",
	"36", "30", "48", "61", "61", "95", "98", "105", "136", "149", "168",
	"182", "228", "167",
}

const (
	plainBorder   = lipgloss.Color("7")
	highlightText = lipgloss.Color("15")
)

// ColorFor returns the accent color of the merge request with the given iid.
func ColorFor(iid int) lipgloss.Color {
	if iid < 0 {
		iid = -iid
	}
	return palette[iid%len(palette)]
}

// TerminalWidth returns the width of the terminal on stdout, or 80 when
// stdout is not a terminal.
func TerminalWidth() int {
	fd := os.Stdout.Fd()
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
