package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/secai/secai/internal/board"
	"github.com/secai/secai/internal/cache"
	"github.com/secai/secai/internal/remediation"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

// ErrNoPerspectives is returned by Roadmap before any perspective was generated.
var ErrNoPerspectives = errors.New("no perspectives generated")

var perspectiveText = map[types.PerspectiveType]string{
	types.PerspectiveExpert: "Contain %[1]s by revoking exposed credentials, isolating affected hosts and " +
		"adding detections for the technique. %[2]s",
	types.PerspectiveAttacker: "An attacker exploiting %[1]s would aim for persistence and quiet data access " +
		"before defenders react. %[2]s",
	types.PerspectiveBusiness: "Remediating %[1]s may interrupt the affected service briefly; weigh that " +
		"against the exposure window. %[2]s",
	types.PerspectiveCompliance: "Depending on the data involved, %[1]s may trigger breach notification " +
		"duties and audit findings. %[2]s",
}

// Remediation is an in-memory remediation service.
type Remediation struct {
	mu    sync.Mutex
	state cache.Remediation
}

// NewRemediation returns an empty service.
func NewRemediation() *Remediation {
	return &Remediation{}
}

// Restore replaces the service state.
func (s *Remediation) Restore(st cache.Remediation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// State returns a copy of the service state.
func (s *Remediation) State() cache.Remediation {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Board = append([]types.BoardNode(nil), s.state.Board...)
	st.Perspectives = make(map[string]*types.Perspectives, len(s.state.Perspectives))
	for k, v := range s.state.Perspectives {
		st.Perspectives[k] = v.Clone()
	}
	st.Notes = make(map[string][]string, len(s.state.Notes))
	for k, v := range s.state.Notes {
		st.Notes[k] = append([]string(nil), v...)
	}
	return st
}

// ReadTree decodes an investigation tree file. Report exports are accepted
// too; their graph_data is used.
func ReadTree(path string) (*types.Node, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if g, ok := probe["graph_data"]; ok && !bytes.Equal(g, []byte("null")) {
		b = g
	}
	var root types.Node
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("invalid tree in %s: %w", path, err)
	}
	if root.ID == "" {
		return nil, fmt.Errorf("invalid tree data format in %s", path)
	}
	return &root, nil
}

// Load flattens the tree at treePath onto the board.
func (s *Remediation) Load(_ context.Context, treePath, docPath string) (int, error) {
	root, err := ReadTree(treePath)
	if err != nil {
		return 0, err
	}
	root = tree.Normalize(root)
	if err := tree.Validate(root); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = cache.Remediation{
		TreePath:     treePath,
		DocPath:      docPath,
		Board:        board.Project(root),
		Perspectives: map[string]*types.Perspectives{},
		Notes:        map[string][]string{},
	}
	return len(s.state.Board), nil
}

// Board returns the flattened nodes.
func (s *Remediation) Board(context.Context) ([]types.BoardNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Board) == 0 {
		return nil, remediation.ErrNotLoaded
	}
	return append([]types.BoardNode(nil), s.state.Board...), nil
}

func (s *Remediation) node(id string) (types.BoardNode, bool) {
	for _, n := range s.state.Board {
		if n.ID == id {
			return n, true
		}
	}
	return types.BoardNode{}, false
}

// Perspectives generates templated viewpoints for node id.
func (s *Remediation) Perspectives(_ context.Context, id string) (*types.Perspectives, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	mk := func(t types.PerspectiveType) *types.Perspective {
		name := string(t)
		return &types.Perspective{
			Title:   strings.ToUpper(name[:1]) + name[1:] + " Perspective",
			Content: strings.TrimSpace(fmt.Sprintf(perspectiveText[t], strings.ToLower(n.Title), n.Description)),
		}
	}
	p := &types.Perspectives{
		Expert:     mk(types.PerspectiveExpert),
		Attacker:   mk(types.PerspectiveAttacker),
		Business:   mk(types.PerspectiveBusiness),
		Compliance: mk(types.PerspectiveCompliance),
	}
	if s.state.Perspectives == nil {
		s.state.Perspectives = map[string]*types.Perspectives{}
	}
	s.state.Perspectives[id] = p
	return p.Clone(), nil
}

// Select marks one perspective of node id.
func (s *Remediation) Select(_ context.Context, id string, t types.PerspectiveType, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.Perspectives[id].Get(t)
	if p == nil {
		return fmt.Errorf("node %s or perspective %s not found", id, t)
	}
	v := selected
	p.Selected = &v
	return nil
}

// Note appends analyst notes to node id.
func (s *Remediation) Note(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.node(id); !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if s.state.Notes == nil {
		s.state.Notes = map[string][]string{}
	}
	s.state.Notes[id] = append(s.state.Notes[id], content)
	return nil
}

// Roadmap writes a three-horizon plan for the nodes with a selected
// perspective, or for every candidate when nothing is selected yet.
func (s *Remediation) Roadmap(context.Context) (types.Roadmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Board) == 0 {
		return types.Roadmap{}, remediation.ErrNotLoaded
	}
	if len(s.state.Perspectives) == 0 {
		return types.Roadmap{}, ErrNoPerspectives
	}

	var nodes []types.BoardNode
	for _, n := range s.state.Board {
		if hasSelection(s.state.Perspectives[n.ID]) {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		nodes = remediation.Candidates(s.state.Board)
	}
	if len(nodes) == 0 {
		for _, n := range s.state.Board {
			if n.Type != types.NodeRoot {
				nodes = append(nodes, n)
			}
		}
	}

	var immediate, short, medium []string
	for _, n := range nodes {
		title := plain(n.Title)
		pct := types.Finding{Confidence: n.Confidence}.ConfidencePct()
		immediate = append(immediate, fmt.Sprintf("Contain %s (Incident Response) - %s at %s confidence", title, n.Status, pct))
		short = append(short, fmt.Sprintf("Fix the root cause of %s (Security Engineering) - %s", title, firstSentence(n.Description)))
		why := "prevent recurrence"
		if notes := s.state.Notes[n.ID]; len(notes) > 0 {
			why = notes[len(notes)-1]
		}
		medium = append(medium, fmt.Sprintf("Review controls and policy for %s (Governance) - %s", title, plain(why)))
	}
	text := section("1.", immediate) + "\n\n" + section("2.", short) + "\n\n" + section("3.", medium)
	return types.Roadmap{RawText: &text}, nil
}

func hasSelection(p *types.Perspectives) bool {
	for _, t := range types.PerspectiveTypes {
		if pp := p.Get(t); pp != nil && pp.Selected != nil && *pp.Selected {
			return true
		}
	}
	return false
}

func section(prefix string, items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i == 0 {
			b.WriteString(prefix + " " + it)
			continue
		}
		b.WriteString("\n- " + it)
	}
	return b.String()
}

// plain drops characters that the roadmap line syntax treats specially.
func plain(s string) string {
	s = strings.NewReplacer("(", "", ")", "", "\n", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func firstSentence(s string) string {
	s = plain(s)
	if s == "" {
		return "close the gap"
	}
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
