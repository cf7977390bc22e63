package views

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// TerminalAlerter renders user facing alerts as a framed box
type TerminalAlerter struct {
	out io.Writer
}

var alertStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("9")).
	Padding(0, 1)

func NewTerminalAlerter(w io.Writer) *TerminalAlerter {
	return &TerminalAlerter{out: w}
}

func (a *TerminalAlerter) Alert(title, message string) {
	fmt.Fprintln(a.out, alertStyle.Render(
		lipgloss.NewStyle().Bold(true).Render(title)+"\n"+message))
}
