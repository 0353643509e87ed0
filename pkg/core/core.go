package core

import (
	"context"

	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/lifecycle"
	"github.com/secai/secai/internal/offline"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Node      = types.Node
	Report    = types.Report
	Finding   = types.Finding
	Status    = types.Status
	BoardNode = types.BoardNode
	Action    = lifecycle.Action
	Session   = session.Session
	Backend   = session.Backend
	Option    = session.Option
	Artifact  = export.Artifact
)

const (
	MarkPlausible   = lifecycle.MarkPlausible
	MarkImplausible = lifecycle.MarkImplausible
)

var (
	WithTitle        = session.WithTitle
	WithInitialNodes = session.WithInitialNodes
	WithExpandCount  = session.WithExpandCount
	WithLogger       = session.WithLogger
	ErrLocked        = lifecycle.ErrLocked
	ErrRootImmune    = lifecycle.ErrRootImmune
	ErrBusy          = session.ErrBusy
	ErrStale         = session.ErrStale
)

// NewSession drives an investigation against any backend.
func NewSession(b Backend, opts ...Option) *Session { return session.New(b, opts...) }

// NewOfflineSession drives an investigation against the built-in template
// generator; no service is contacted.
func NewOfflineSession(opts ...Option) *Session {
	return session.New(offline.NewInvestigation(offline.TemplateGenerator{}), opts...)
}

// ExportJSON writes r as a JSON report file into dir and returns it.
// PDF export needs a browser for the graph snapshot and stays CLI-only.
func ExportJSON(ctx context.Context, r Report, dir string) (Artifact, error) {
	e := &export.Exporter{Version: "core"}
	arts, err := e.Export(ctx, r, []export.Format{export.FormatJSON}, dir)
	if err != nil {
		return Artifact{}, err
	}
	return arts[0], nil
}
