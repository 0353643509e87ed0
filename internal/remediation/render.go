package remediation

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/secai/secai/internal/types"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	selectedCard = cardStyle.BorderForeground(lipgloss.Color("10"))
	rejectedCard = cardStyle.BorderForeground(lipgloss.Color("9"))
	cardTitle    = lipgloss.NewStyle().Bold(true)
	cardState    = lipgloss.NewStyle().Faint(true)
)

// SelectionLabel describes a perspective's selection state.
func SelectionLabel(p *types.Perspective) string {
	switch {
	case p == nil || p.Selected == nil:
		return "pending"
	case *p.Selected:
		return "selected"
	}
	return "rejected"
}

// PrintPerspectives writes one card per generated perspective.
func PrintPerspectives(w io.Writer, nodeID string, p *types.Perspectives, width int) {
	fmt.Fprintf(w, "Perspectives for %s\n", nodeID)
	for _, t := range types.PerspectiveTypes {
		pp := p.Get(t)
		if pp == nil {
			continue
		}
		style := cardStyle
		switch SelectionLabel(pp) {
		case "selected":
			style = selectedCard
		case "rejected":
			style = rejectedCard
		}
		if width > 4 {
			style = style.Width(width - 2)
		}
		title := pp.Title
		if title == "" {
			title = strings.ToUpper(string(t[:1])) + string(t[1:]) + " Perspective"
		}
		body := cardTitle.Render(title) + " " + cardState.Render("["+string(t)+", "+SelectionLabel(pp)+"]") +
			"\n" + strings.TrimSpace(pp.Content)
		fmt.Fprintln(w, style.Render(body))
	}
}
