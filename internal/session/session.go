// Package session owns one investigation: the current tree, the status
// machine and the bookkeeping that keeps concurrent UI requests honest.
//
// At most one mutating request (start, refresh, mark, expand) runs at a
// time; a second one fails fast with ErrBusy. Every request that can be
// superseded carries a per-key sequence number and a request id, and a
// response that is no longer the latest for its key is dropped with ErrStale.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/secai/secai/internal/board"
	"github.com/secai/secai/internal/lifecycle"
	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a mutating request is already in flight.
	ErrBusy = errors.New("another request is in progress")
	// ErrStale is returned when a newer request for the same target was
	// dispatched before this one completed; its result was discarded.
	ErrStale = errors.New("response superseded by a newer request")
	// ErrNoInvestigation is returned before Start or Restore.
	ErrNoInvestigation = errors.New("no active investigation")
)

// DefaultInitialNodes is the number of hypotheses requested on Start.
const DefaultInitialNodes = 3

// Backend is the investigation service the session talks to.
type Backend interface {
	lifecycle.StatusUpdater
	lifecycle.Expander
	Start(ctx context.Context, breachInfo string, initial int) (*types.Node, error)
	Tree(ctx context.Context) (*types.Node, error)
	Details(ctx context.Context, id string) (*types.NodeDetails, error)
	Narrative(ctx context.Context) (report.Narrative, error)
}

// Session is one investigation. The zero value is not usable; call New.
type Session struct {
	backend Backend
	machine *lifecycle.Machine
	log     *zap.SugaredLogger
	now     func() time.Time
	title   string
	initial int

	busy atomic.Bool

	// root is the published tree read by every accessor. idx is the working
	// index over the same tree; only the holder of busy mutates it, and its
	// result is published back to root under mu.
	mu     sync.Mutex
	root   *types.Node
	idx    *tree.Index
	breach string
	epoch  uint64
	seq    map[string]uint64
}

type settings struct {
	log         *zap.SugaredLogger
	now         func() time.Time
	title       string
	initial     int
	expandCount int
}

// Option configures a Session.
type Option func(*settings)

// WithLogger sets the session logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *settings) { s.log = l }
}

// WithClock overrides time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithTitle sets the report title used when the narrative carries none.
func WithTitle(title string) Option {
	return func(s *settings) { s.title = title }
}

// WithInitialNodes sets how many hypotheses Start requests.
func WithInitialNodes(n int) Option {
	return func(s *settings) { s.initial = n }
}

// WithExpandCount sets how many children a plausible verdict requests.
func WithExpandCount(n int) Option {
	return func(s *settings) { s.expandCount = n }
}

// New returns a session backed by b.
func New(b Backend, opts ...Option) *Session {
	cfg := settings{
		log:     zap.NewNop().Sugar(),
		now:     time.Now,
		initial: DefaultInitialNodes,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.log == nil {
		cfg.log = zap.NewNop().Sugar()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.initial <= 0 {
		cfg.initial = DefaultInitialNodes
	}
	s := &Session{
		backend: b,
		log:     cfg.log,
		now:     cfg.now,
		title:   cfg.title,
		initial: cfg.initial,
		seq:     map[string]uint64{},
	}
	s.machine = lifecycle.New(b, expander{s},
		lifecycle.WithExpandCount(cfg.expandCount),
		lifecycle.WithLogger(cfg.log.Named("lifecycle")))
	return s
}

// expander asks the backend for children and drops the answer when a newer
// expansion of the same node, or a new investigation, superseded it.
type expander struct{ s *Session }

func (e expander) Expand(ctx context.Context, parentID string, count int) ([]*types.Node, error) {
	s := e.s
	t := s.dispatch("expand:" + parentID)
	kids, err := s.backend.Expand(ctx, parentID, count)
	if err != nil {
		s.log.Warnw("expansion failed", "node", parentID, "request_id", t.id, "error", err)
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		return nil, s.stale(t)
	}
	return kids, nil
}

// acquire sets the busy flag. The returned func clears it and must be deferred.
func (s *Session) acquire(op string) (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Debugw("request rejected while busy", "op", op)
		return nil, fmt.Errorf("%s: %w", op, ErrBusy)
	}
	return func() { s.busy.Store(false) }, nil
}

// Busy reports whether a mutating request is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

type ticket struct {
	key   string
	epoch uint64
	seq   uint64
	id    string
}

// dispatch registers a new request for key, superseding earlier ones.
func (s *Session) dispatch(key string) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[key]++
	t := ticket{key: key, epoch: s.epoch, seq: s.seq[key], id: uuid.NewString()}
	s.log.Debugw("request dispatched", "key", key, "seq", t.seq, "request_id", t.id)
	return t
}

// currentLocked reports whether t is still the latest request for its key.
func (s *Session) currentLocked(t ticket) bool {
	return t.epoch == s.epoch && s.seq[t.key] == t.seq
}

func (s *Session) stale(t ticket) error {
	s.log.Infow("discarding stale response", "key", t.key, "seq", t.seq, "request_id", t.id)
	return fmt.Errorf("%s: %w", t.key, ErrStale)
}

// ingest normalizes and validates a tree received from outside.
func ingest(root *types.Node) (*types.Node, error) {
	root = tree.Normalize(root)
	if err := tree.Validate(root); err != nil {
		return nil, err
	}
	return root, nil
}

// Start opens a new investigation. The previous tree and every pending
// request are discarded.
func (s *Session) Start(ctx context.Context, breachInfo string) (*types.Node, error) {
	release, err := s.acquire("start")
	if err != nil {
		return nil, err
	}
	defer release()

	root, err := s.backend.Start(ctx, breachInfo, s.initial)
	if err != nil {
		s.log.Errorw("start failed", "error", err)
		return nil, fmt.Errorf("start investigation: %w", err)
	}
	root, err = ingest(root)
	if err != nil {
		return nil, fmt.Errorf("start investigation: %w", err)
	}
	s.reset(breachInfo, root)
	tok := s.machine.Bump()
	s.log.Infow("investigation started", "nodes", tree.Count(root), "token", tok)
	return tree.Clone(root), nil
}

// Restore adopts an existing tree, e.g. one saved by an earlier process.
func (s *Session) Restore(breachInfo string, root *types.Node) error {
	root, err := ingest(tree.Clone(root))
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.reset(breachInfo, root)
	s.machine.Bump()
	return nil
}

// reset installs a new investigation and invalidates every pending request.
func (s *Session) reset(breachInfo string, root *types.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.idx = tree.NewIndex(root)
	s.breach = breachInfo
	s.epoch++
	s.seq = map[string]uint64{}
}

const treeKey = "tree"

// Refresh replaces the local tree with the service's.
func (s *Session) Refresh(ctx context.Context) (*types.Node, error) {
	release, err := s.acquire("refresh")
	if err != nil {
		return nil, err
	}
	defer release()

	t := s.dispatch(treeKey)
	root, err := s.backend.Tree(ctx)
	if err != nil {
		s.log.Errorw("refresh failed", "request_id", t.id, "error", err)
		return nil, fmt.Errorf("refresh: %w", err)
	}
	root, err = ingest(root)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	s.mu.Lock()
	if !s.currentLocked(t) {
		s.mu.Unlock()
		return nil, s.stale(t)
	}
	s.root = root
	s.idx = tree.NewIndex(root)
	s.mu.Unlock()
	s.machine.Bump()
	return tree.Clone(root), nil
}

func (s *Session) current() (*types.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil, ErrNoInvestigation
	}
	return s.root, nil
}

// working returns the index a mutating request operates on. Callers must
// hold busy.
func (s *Session) working() (*tree.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return nil, ErrNoInvestigation
	}
	return s.idx, nil
}

// publish makes the working tree of ix visible. It fails with ErrStale when a
// new investigation replaced ix in the meantime.
func (s *Session) publish(op string, ix *tree.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != ix {
		s.log.Infow("discarding result for replaced investigation", "op", op)
		return fmt.Errorf("%s: %w", op, ErrStale)
	}
	s.root = ix.Root()
	return nil
}

// Mark applies a verdict to node id. A plausible verdict also requests one
// expansion of the node; when that expansion fails the verdict stays
// committed and the expansion error is returned alongside the result.
func (s *Session) Mark(ctx context.Context, id string, a lifecycle.Action) (lifecycle.Result, error) {
	release, err := s.acquire("mark")
	if err != nil {
		return lifecycle.Result{}, err
	}
	defer release()

	ix, err := s.working()
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := s.machine.Apply(ctx, ix, id, a)
	if err != nil && res.Effect != lifecycle.EffectExpand {
		s.log.Warnw("transition rejected", "node", id, "action", a, "error", err)
		return lifecycle.Result{}, err
	}
	if perr := s.publish("mark "+id, ix); perr != nil {
		return lifecycle.Result{}, perr
	}
	return cloneResult(res), err
}

// Expand requests n more children for node id.
func (s *Session) Expand(ctx context.Context, id string, n int) (int, error) {
	release, err := s.acquire("expand")
	if err != nil {
		return 0, err
	}
	defer release()

	ix, err := s.working()
	if err != nil {
		return 0, err
	}
	if _, ok := ix.Lookup(id); !ok {
		return 0, fmt.Errorf("expand: %w: %s", lifecycle.ErrNotFound, id)
	}
	kids, err := s.machine.Generate(ctx, id, n)
	if err != nil {
		return 0, err
	}
	added := s.machine.Merge(ix, id, kids)
	if err := s.publish("expand "+id, ix); err != nil {
		return 0, err
	}
	return added, nil
}

// Details fetches the detail view of node id. Only the latest request per
// node is answered; older ones return ErrStale.
func (s *Session) Details(ctx context.Context, id string) (*types.NodeDetails, error) {
	t := s.dispatch("details:" + id)
	d, err := s.backend.Details(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("details %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		return nil, s.stale(t)
	}
	return d, nil
}

// Report snapshots the current tree into a report, with the narrative
// written by the service.
func (s *Session) Report(ctx context.Context) (types.Report, error) {
	root, err := s.current()
	if err != nil {
		return types.Report{}, err
	}
	n, err := s.backend.Narrative(ctx)
	if err != nil {
		return types.Report{}, fmt.Errorf("report narrative: %w", err)
	}
	if n.Title == "" {
		n.Title = s.title
	}
	r := report.Build(root, n, s.now())
	s.log.Infow("report built", "findings", len(r.Findings), "title", r.Title)
	return r, nil
}

// Snapshot returns a deep copy of the current tree, or nil.
func (s *Session) Snapshot() *types.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Clone(s.root)
}

// Breach returns the breach description the investigation started from.
func (s *Session) Breach() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breach
}

// Board projects the current tree onto the remediation board.
func (s *Session) Board() []types.BoardNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return board.Project(s.root)
}

// Token returns the render-invalidation token.
func (s *Session) Token() uint64 { return s.machine.Token() }

func cloneResult(r lifecycle.Result) lifecycle.Result {
	r.Tree = tree.Clone(r.Tree)
	return r
}
