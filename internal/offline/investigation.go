package offline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

var (
	// ErrNoInvestigation is returned before Start or Restore.
	ErrNoInvestigation = errors.New("no active investigation")
	// ErrNodeNotFound is returned for unknown node ids.
	ErrNodeNotFound = errors.New("node not found")
)

// Investigation is an in-memory investigation service.
type Investigation struct {
	gen Generator

	mu     sync.Mutex
	breach string
	root   *types.Node
}

// NewInvestigation returns a service using gen, or TemplateGenerator when nil.
func NewInvestigation(gen Generator) *Investigation {
	if gen == nil {
		gen = TemplateGenerator{}
	}
	return &Investigation{gen: gen}
}

// Restore replaces the current investigation, e.g. with state saved by a
// previous process.
func (s *Investigation) Restore(breach string, root *types.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breach = breach
	s.root = tree.Clone(root)
}

// State returns the breach text and a copy of the current tree.
func (s *Investigation) State() (string, *types.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breach, tree.Clone(s.root)
}

// Start creates a root node for breachInfo with initial hypotheses.
func (s *Investigation) Start(_ context.Context, breachInfo string, initial int) (*types.Node, error) {
	if strings.TrimSpace(breachInfo) == "" {
		return nil, fmt.Errorf("start investigation: breach description is empty")
	}
	if initial <= 0 {
		initial = 3
	}
	root := &types.Node{
		ID:          "root",
		Title:       "Initial Breach",
		Description: breachInfo,
		Type:        types.NodeRoot,
		Status:      types.StatusUnverified,
		Confidence:  0.8,
		Metadata:    types.MetadataOf("depth", "0"),
		Evidence:    []string{},
	}
	root.Children = s.gen.Generate(root, initial)

	s.mu.Lock()
	s.breach = breachInfo
	s.root = root
	s.mu.Unlock()
	return tree.Clone(root), nil
}

// Tree returns a copy of the current tree.
func (s *Investigation) Tree(context.Context) (*types.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil, ErrNoInvestigation
	}
	return tree.Clone(s.root), nil
}

// UpdateStatus records status on node id. Like the remote service it does
// not enforce the lifecycle; callers do.
func (s *Investigation) UpdateStatus(_ context.Context, id string, status types.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return ErrNoInvestigation
	}
	if _, ok := tree.Find(s.root, id); !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.root = tree.Patch(s.root, id, func(n types.Node) types.Node {
		n.Status = status
		n.Locked = n.Type != types.NodeRoot && status.Terminal()
		return n
	})
	return nil
}

// Expand generates count children under parentID, stores them and returns them.
func (s *Investigation) Expand(_ context.Context, parentID string, count int) ([]*types.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil, ErrNoInvestigation
	}
	parent, ok := tree.Find(s.root, parentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, parentID)
	}
	kids := s.gen.Generate(parent, count)
	s.root, _ = tree.AttachChildren(s.root, parentID, kids)
	out := make([]*types.Node, len(kids))
	for i, k := range kids {
		out[i] = tree.Clone(k)
	}
	return out, nil
}

// Details returns the detail view of node id.
func (s *Investigation) Details(_ context.Context, id string) (*types.NodeDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := tree.Find(s.root, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	c := tree.Clone(n)
	return &types.NodeDetails{
		Title:       c.Title,
		Type:        c.Type,
		Status:      c.Status,
		Confidence:  c.Confidence,
		Description: c.Description,
		Evidence:    c.Evidence,
		Metadata:    c.Metadata.Clone(),
	}, nil
}

// Narrative writes a templated summary and up to five recommendations drawn
// from the most confident confirmed or plausible hypotheses.
func (s *Investigation) Narrative(context.Context) (report.Narrative, error) {
	s.mu.Lock()
	root := s.root
	breach := s.breach
	s.mu.Unlock()
	if root == nil {
		return report.Narrative{}, ErrNoInvestigation
	}

	var relevant []*types.Node
	var confirmed, plausible int
	tree.Walk(root, func(n *types.Node, _ int) bool {
		switch {
		case n.IsRoot():
		case n.Status == types.StatusConfirmed:
			confirmed++
			relevant = append(relevant, n)
		case n.Status == types.StatusPlausible:
			plausible++
			relevant = append(relevant, n)
		}
		return true
	})
	sort.SliceStable(relevant, func(i, j int) bool { return relevant[i].Confidence > relevant[j].Confidence })

	desc := breach
	if len(desc) > 100 {
		desc = desc[:100] + "..."
	}
	summary := fmt.Sprintf("Investigation of %s found %d confirmed and %d plausible findings.", desc, confirmed, plausible)

	recs := []string{}
	for i, n := range relevant {
		if i == 5 {
			break
		}
		recs = append(recs, fmt.Sprintf("Investigate and contain: %s", n.Title))
	}
	if len(recs) == 0 {
		recs = append(recs, "Continue triage: no hypothesis has been confirmed or judged plausible yet.")
	}
	return report.Narrative{Summary: summary, Recommendations: recs}, nil
}
