package roadmap

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/secai/secai/internal/types"
)

var (
	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))
	errorPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
)

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	Width int
	// Style is a glamour standard style name ("dark", "light", "notty", ...).
	// Empty picks one from the terminal background.
	Style string
}

// ErrorPanel renders the inline panel shown for an unusable roadmap.
func ErrorPanel(msg string, width int) string {
	body := errorTitleStyle.Render("Error Parsing Roadmap") + "\n" + msg
	if width > 4 {
		return errorPanelStyle.Width(width - 2).Render(body)
	}
	return errorPanelStyle.Render(body)
}

// Render formats a roadmap payload for the terminal. A payload without text
// yields an inline error panel instead of an error; markdown rendering
// problems fall back to the plain markdown.
func Render(r types.Roadmap, opts RenderOptions) string {
	text, err := Text(r)
	if err != nil {
		return ErrorPanel("The roadmap data is not in the expected format.", opts.Width)
	}
	md := Markdown(Sections(text))

	ropts := []glamour.TermRendererOption{}
	if opts.Style != "" {
		ropts = append(ropts, glamour.WithStandardStyle(opts.Style))
	} else {
		ropts = append(ropts, glamour.WithAutoStyle())
	}
	if opts.Width > 0 {
		ropts = append(ropts, glamour.WithWordWrap(opts.Width))
	}
	tr, err := glamour.NewTermRenderer(ropts...)
	if err != nil {
		return md
	}
	out, err := tr.Render(md)
	if err != nil {
		return md
	}
	return out
}
