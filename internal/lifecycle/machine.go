package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
	"go.uber.org/zap"
)

// DefaultExpandCount is how many child hypotheses a plausible verdict requests.
const DefaultExpandCount = 3

// StatusUpdater persists a status change with the investigation service.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status types.Status) error
}

// Expander asks the hypothesis generator for count new children of parentID.
type Expander interface {
	Expand(ctx context.Context, parentID string, count int) ([]*types.Node, error)
}

// Machine drives transitions against the external collaborators and keeps
// the render-invalidation token.
type Machine struct {
	updater  StatusUpdater
	expander Expander
	count    int
	token    atomic.Uint64
	log      *zap.SugaredLogger
}

// Option configures a Machine.
type Option func(*Machine)

// WithExpandCount overrides DefaultExpandCount. Values below 1 are ignored.
func WithExpandCount(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.count = n
		}
	}
}

// WithLogger sets the logger used for transition events.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// New builds a Machine. updater may be nil when status changes are local only.
func New(updater StatusUpdater, expander Expander, opts ...Option) *Machine {
	m := &Machine{
		updater:  updater,
		expander: expander,
		count:    DefaultExpandCount,
		log:      zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Result describes the outcome of a transition.
type Result struct {
	Tree   *types.Node
	Node   types.Node
	Effect Effect
	Added  int
	Token  uint64
}

// Token returns the current render-invalidation token. It increases on every
// committed transition and every merged expansion.
func (m *Machine) Token() uint64 { return m.token.Load() }

// Bump advances the token, e.g. after the tree was replaced wholesale.
func (m *Machine) Bump() uint64 { return m.token.Add(1) }

// ExpandCount returns the number of children requested per expansion.
func (m *Machine) ExpandCount() int { return m.count }

// Commit validates the transition locally, persists it and patches it into
// the indexed tree. Nothing is committed when validation or persistence
// fails; the returned Result then carries the unchanged root and no effect.
func (m *Machine) Commit(ctx context.Context, ix *tree.Index, id string, a Action) (Result, error) {
	cur, ok := ix.Lookup(id)
	if !ok {
		return Result{Tree: ix.Root()}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next, effect, err := Transition(*cur, a)
	if err != nil {
		return Result{Tree: ix.Root()}, err
	}
	if m.updater != nil {
		if err := m.updater.UpdateStatus(ctx, id, next.Status); err != nil {
			return Result{Tree: ix.Root()}, fmt.Errorf("update status of %s: %w", id, err)
		}
	}
	out := ix.Patch(id, func(n types.Node) types.Node {
		n.Status = next.Status
		n.Locked = next.Locked
		return n
	})
	tok := m.token.Add(1)
	m.log.Infow("status committed", "node", id, "status", next.Status, "effect", effect, "token", tok)
	committed, _ := ix.Lookup(id)
	return Result{Tree: out, Node: *committed, Effect: effect, Token: tok}, nil
}

// Generate requests n children for parentID from the expander; n <= 0 means
// ExpandCount.
func (m *Machine) Generate(ctx context.Context, parentID string, n int) ([]*types.Node, error) {
	if m.expander == nil {
		return nil, fmt.Errorf("expand %s: no generator configured", parentID)
	}
	if n <= 0 {
		n = m.count
	}
	kids, err := m.expander.Expand(ctx, parentID, n)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", parentID, err)
	}
	return kids, nil
}

// Merge attaches generated children to parentID and advances the token when
// anything was added.
func (m *Machine) Merge(ix *tree.Index, parentID string, kids []*types.Node) int {
	added := ix.Attach(parentID, kids)
	if added > 0 {
		tok := m.token.Add(1)
		m.log.Infow("expansion merged", "node", parentID, "added", added, "token", tok)
	}
	return added
}

// Apply runs a full transition: commit, then for a plausible verdict exactly
// one expansion request whose children are merged under the node. When the
// expansion fails the committed status and lock are kept and the error is
// returned with the committed tree and EffectExpand.
func (m *Machine) Apply(ctx context.Context, ix *tree.Index, id string, a Action) (Result, error) {
	res, err := m.Commit(ctx, ix, id, a)
	if err != nil || res.Effect != EffectExpand {
		return res, err
	}
	kids, err := m.Generate(ctx, id, 0)
	if err != nil {
		m.log.Warnw("expansion failed, keeping verdict", "node", id, "error", err)
		return res, err
	}
	res.Added = m.Merge(ix, id, kids)
	res.Tree = ix.Root()
	res.Token = m.Token()
	return res, nil
}
