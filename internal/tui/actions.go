package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/secai/secai/internal/audit"
	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/lifecycle"
	"github.com/secai/secai/internal/redact"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/types"
)

type statusMsg string

// treeMsg carries the tree after a mutating request. root may be set even
// when err is not nil, e.g. a committed verdict whose expansion failed.
type treeMsg struct {
	op    string
	root  *types.Node
	token uint64
	note  string
	err   error
}

type detailsMsg struct {
	id      string
	details *types.NodeDetails
	err     error
}

type exportMsg struct {
	artifacts []export.Artifact
	err       error
}

func isStale(err error) bool { return errors.Is(err, session.ErrStale) }

func errorStatus(op string, err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "Busy: wait for the current request to finish"
	case errors.Is(err, lifecycle.ErrLocked):
		return "Node is locked"
	case errors.Is(err, lifecycle.ErrRootImmune):
		return "The root node cannot change status"
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}

func (m Model) markCmd(id string, a lifecycle.Action) tea.Cmd {
	s := m.sess
	return func() tea.Msg {
		res, err := s.Mark(context.Background(), id, a)
		msg := treeMsg{op: "mark", root: res.Tree, token: res.Token, err: err}
		if res.Tree == nil {
			msg.root = s.Snapshot()
			msg.token = s.Token()
		}
		if err == nil {
			msg.note = fmt.Sprintf("%s marked %s", res.Node.Title, res.Node.Status)
			if res.Added > 0 {
				msg.note += fmt.Sprintf(", %d new hypotheses", res.Added)
			}
		}
		return msg
	}
}

func (m Model) expandCmd(id string) tea.Cmd {
	s := m.sess
	return func() tea.Msg {
		added, err := s.Expand(context.Background(), id, 0)
		return treeMsg{
			op:    "expand",
			root:  s.Snapshot(),
			token: s.Token(),
			note:  fmt.Sprintf("%d new hypotheses", added),
			err:   err,
		}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	s := m.sess
	return func() tea.Msg {
		root, err := s.Refresh(context.Background())
		if err != nil {
			return treeMsg{op: "refresh", err: err}
		}
		return treeMsg{op: "refresh", root: root, token: s.Token(), note: "Tree refreshed"}
	}
}

func (m Model) detailsCmd(id string) tea.Cmd {
	s := m.sess
	return func() tea.Msg {
		d, err := s.Details(context.Background(), id)
		return detailsMsg{id: id, details: d, err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	s := m.sess
	opts := m.opts
	return func() tea.Msg {
		ctx := context.Background()
		r, err := s.Report(ctx)
		if err != nil {
			return exportMsg{err: err}
		}
		if opts.Redact {
			r, _ = redact.Report(r)
		}
		formats := opts.Formats
		if len(formats) == 0 {
			formats = []export.Format{export.FormatJSON, export.FormatPDF}
		}
		dir := opts.OutputDir
		if dir == "" {
			dir = "."
		}
		arts, err := opts.Exporter.Export(ctx, r, formats, dir)
		if err != nil {
			return exportMsg{err: err}
		}
		if opts.Audit != nil {
			// The export itself succeeded; a history write failure is only reported.
			if err := opts.Audit.LogExport(audit.CreateExportRecord(r, arts)); err != nil {
				return exportMsg{artifacts: arts, err: fmt.Errorf("record export history: %w", err)}
			}
		}
		return exportMsg{artifacts: arts}
	}
}

// persistCmd hands the current tree to Options.Persist, if set.
func (m Model) persistCmd() tea.Cmd {
	if m.opts.Persist == nil || m.root == nil {
		return nil
	}
	persist := m.opts.Persist
	breach := m.sess.Breach()
	root := m.sess.Snapshot()
	return func() tea.Msg {
		if err := persist(breach, root); err != nil {
			return statusMsg(fmt.Sprintf("Saving state failed: %v", err))
		}
		return nil
	}
}

func (m Model) savePrefsCmd() tea.Cmd {
	prefs := m.prefs
	return func() tea.Msg {
		if err := SavePrefs(prefs); err != nil {
			return statusMsg(fmt.Sprintf("Saving preferences failed: %v", err))
		}
		return nil
	}
}

func copyToClipboard(text, what string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return statusMsg(fmt.Sprintf("Copy failed: %v", err))
		}
		return statusMsg(fmt.Sprintf("Copied %s to clipboard", what))
	}
}
