// Package remediation drives remediation planning for a finished
// investigation: the board, per-node perspectives, analyst selections and
// notes, and the final roadmap.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/secai/secai/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds GenerateAll.
const DefaultConcurrency = 4

var (
	// ErrNotLoaded is returned before an investigation has been loaded.
	ErrNotLoaded = errors.New("no investigation loaded")
	// ErrUnknownPerspective is returned when selecting a perspective that
	// was never generated for the node.
	ErrUnknownPerspective = errors.New("perspective not generated")
)

// Service is the remediation backend.
type Service interface {
	Load(ctx context.Context, treePath, docPath string) (int, error)
	Board(ctx context.Context) ([]types.BoardNode, error)
	Perspectives(ctx context.Context, id string) (*types.Perspectives, error)
	Select(ctx context.Context, id string, t types.PerspectiveType, selected bool) error
	Note(ctx context.Context, id, content string) error
	Roadmap(ctx context.Context) (types.Roadmap, error)
}

// Advisor wraps a Service and tracks what it has seen for one session.
type Advisor struct {
	svc   Service
	log   *zap.SugaredLogger
	limit int

	mu           sync.Mutex
	board        []types.BoardNode
	perspectives map[string]*types.Perspectives
	notes        map[string]string
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithLogger sets the advisor logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Advisor) {
		if l != nil {
			a.log = l
		}
	}
}

// WithConcurrency bounds how many perspective requests GenerateAll issues at once.
func WithConcurrency(n int) Option {
	return func(a *Advisor) {
		if n > 0 {
			a.limit = n
		}
	}
}

// New returns an Advisor backed by svc.
func New(svc Service, opts ...Option) *Advisor {
	a := &Advisor{
		svc:          svc,
		log:          zap.NewNop().Sugar(),
		limit:        DefaultConcurrency,
		perspectives: map[string]*types.Perspectives{},
		notes:        map[string]string{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Load hands the investigation tree to the service and fetches the board.
// Previously tracked perspectives and notes are dropped.
func (a *Advisor) Load(ctx context.Context, treePath, docPath string) ([]types.BoardNode, error) {
	n, err := a.svc.Load(ctx, treePath, docPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", treePath, err)
	}
	a.log.Infow("investigation loaded", "path", treePath, "nodes", n)
	a.mu.Lock()
	a.perspectives = map[string]*types.Perspectives{}
	a.notes = map[string]string{}
	a.mu.Unlock()
	return a.Board(ctx)
}

// Board fetches the board from the service.
func (a *Advisor) Board(ctx context.Context) ([]types.BoardNode, error) {
	nodes, err := a.svc.Board(ctx)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	a.mu.Lock()
	a.board = append([]types.BoardNode(nil), nodes...)
	a.mu.Unlock()
	return nodes, nil
}

// Perspectives generates the viewpoints for one node.
func (a *Advisor) Perspectives(ctx context.Context, id string) (*types.Perspectives, error) {
	p, err := a.svc.Perspectives(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("perspectives for %s: %w", id, err)
	}
	a.mu.Lock()
	a.perspectives[id] = p.Clone()
	a.mu.Unlock()
	a.log.Debugw("perspectives generated", "node", id)
	return p, nil
}

// GenerateAll generates perspectives for every id concurrently. The first
// failure cancels the rest and is returned.
func (a *Advisor) GenerateAll(ctx context.Context, ids []string) (map[string]*types.Perspectives, error) {
	out := make(map[string]*types.Perspectives, len(ids))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for _, id := range ids {
		g.Go(func() error {
			p, err := a.Perspectives(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Select records the analyst's verdict on one perspective. Perspectives this
// advisor generated are checked locally first.
func (a *Advisor) Select(ctx context.Context, id string, t types.PerspectiveType, selected bool) error {
	a.mu.Lock()
	p, known := a.perspectives[id]
	a.mu.Unlock()
	if known && p.Get(t) == nil {
		return fmt.Errorf("select %s/%s: %w", id, t, ErrUnknownPerspective)
	}
	if err := a.svc.Select(ctx, id, t, selected); err != nil {
		return fmt.Errorf("select %s/%s: %w", id, t, err)
	}
	if known {
		a.mu.Lock()
		if cur := a.perspectives[id].Get(t); cur != nil {
			v := selected
			cur.Selected = &v
		}
		a.mu.Unlock()
	}
	return nil
}

// Note attaches analyst notes to a node.
func (a *Advisor) Note(ctx context.Context, id, content string) error {
	if err := a.svc.Note(ctx, id, content); err != nil {
		return fmt.Errorf("note %s: %w", id, err)
	}
	a.mu.Lock()
	a.notes[id] = content
	a.mu.Unlock()
	return nil
}

// Roadmap generates the remediation roadmap.
func (a *Advisor) Roadmap(ctx context.Context) (types.Roadmap, error) {
	r, err := a.svc.Roadmap(ctx)
	if err != nil {
		return types.Roadmap{}, fmt.Errorf("roadmap: %w", err)
	}
	return r, nil
}

// Selected returns, per node, the perspective types marked selected.
func (a *Advisor) Selected() map[string][]types.PerspectiveType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := map[string][]types.PerspectiveType{}
	for id, p := range a.perspectives {
		for _, t := range types.PerspectiveTypes {
			if pp := p.Get(t); pp != nil && pp.Selected != nil && *pp.Selected {
				out[id] = append(out[id], t)
			}
		}
	}
	return out
}

// Notes returns a copy of the notes recorded through this advisor.
func (a *Advisor) Notes() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.notes))
	for k, v := range a.notes {
		out[k] = v
	}
	return out
}

// Candidates returns the hypotheses worth planning for: non-root nodes that
// were confirmed or judged plausible.
func Candidates(board []types.BoardNode) []types.BoardNode {
	var out []types.BoardNode
	for _, n := range board {
		if n.Type == types.NodeRoot {
			continue
		}
		if n.Status == types.StatusConfirmed || n.Status == types.StatusPlausible {
			out = append(out, n)
		}
	}
	return out
}
