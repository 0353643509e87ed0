package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/secai/secai/internal/audit"
	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/types"
)

// Options wires the browser to export and persistence.
type Options struct {
	// Exporter enables the export key; nil disables it.
	Exporter  *export.Exporter
	Formats   []export.Format
	OutputDir string
	// Redact masks credentials in exported reports.
	Redact bool
	// Audit records every export when set.
	Audit *audit.AuditLog
	// Persist is called after every tree change.
	Persist func(breach string, root *types.Node) error
	Prefs   Prefs
}

// Run browses the session's investigation until the user quits.
func Run(s *session.Session, opts Options) error {
	m := NewModel(s, opts)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
