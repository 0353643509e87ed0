package report

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hyp(id string, status types.Status, conf float64, kids ...*types.Node) *types.Node {
	return &types.Node{
		ID:          id,
		Title:       "H " + id,
		Description: "description of " + id,
		Type:        types.NodeHypothesis,
		Status:      status,
		Confidence:  conf,
		Children:    kids,
	}
}

func investigation() *types.Node {
	return &types.Node{
		ID: "root", Title: "Data exfiltration", Type: types.NodeRoot, Status: types.StatusConfirmed,
		Children: []*types.Node{
			hyp("a", types.StatusPlausible, 0.8,
				hyp("a1", types.StatusConfirmed, 0.9),
				hyp("a2", types.StatusUnverified, 0.5)),
			hyp("b", types.StatusImplausible, 0.1),
			hyp("c", types.StatusUnverified, 0.4,
				hyp("c1", types.StatusPlausible, 0.6)),
		},
	}
}

func TestBuild_FindingsInPreOrder(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 30, 0, 0, time.FixedZone("CET", 3600))
	r := Build(investigation(), Narrative{
		Summary:         "Attacker used phished credentials.",
		Recommendations: []string{"Rotate keys", "Enforce MFA"},
	}, now)

	assert.Equal(t, DefaultTitle, r.Title)
	assert.True(t, r.Timestamp.Equal(now))
	assert.Equal(t, time.UTC, r.Timestamp.Location())
	assert.Equal(t, "Attacker used phished credentials.", r.Summary)
	assert.Equal(t, []string{"Rotate keys", "Enforce MFA"}, r.Recommendations)

	var titles []string
	for _, f := range r.Findings {
		titles = append(titles, f.Title)
	}
	// root is confirmed but never reported; unverified nodes are skipped
	assert.Equal(t, []string{"H a", "H a1", "H b", "H c1"}, titles)
	assert.Equal(t, types.Finding{
		Title: "H a1", Description: "description of a1", Status: types.StatusConfirmed, Confidence: 0.9,
	}, r.Findings[1])
}

func TestBuild_FindingCountMatchesAdjudicatedNodes(t *testing.T) {
	root := investigation()
	want := 0
	tree.Walk(root, func(n *types.Node, _ int) bool {
		if n.Type != types.NodeRoot && n.Status != types.StatusUnverified {
			want++
		}
		return true
	})
	assert.Len(t, Build(root, Narrative{}, time.Now()).Findings, want)
}

func TestBuild_GraphDataIsFrozen(t *testing.T) {
	root := investigation()
	r := Build(root, Narrative{Title: "Incident 42"}, time.Now())
	require.Empty(t, cmp.Diff(root, r.GraphData))
	assert.Equal(t, "Incident 42", r.Title)

	// mutate the live tree in place and through a patch
	root.Children[0].Title = "changed"
	root.Children[1].Children = append(root.Children[1].Children, hyp("new", types.StatusUnverified, 0))
	_ = tree.Patch(root, "c1", func(n types.Node) types.Node {
		n.Status = types.StatusImplausible
		return n
	})

	assert.Equal(t, "H a", r.GraphData.Children[0].Title)
	assert.Empty(t, r.GraphData.Children[1].Children)
	assert.NotSame(t, root, r.GraphData)
}

func TestBuild_Empty(t *testing.T) {
	r := Build(nil, Narrative{}, time.Now())
	assert.Empty(t, r.Findings)
	assert.NotNil(t, r.Findings)
	assert.Nil(t, r.GraphData)
}

func TestDiff(t *testing.T) {
	old := Build(investigation(), Narrative{}, time.Now())
	next := tree.Patch(investigation(), "a2", func(n types.Node) types.Node {
		n.Status = types.StatusImplausible
		return n
	})
	next = tree.Patch(next, "b", func(n types.Node) types.Node {
		n.Title = "H b renamed"
		return n
	})
	cur := Build(next, Narrative{}, time.Now())
	cur.Findings[0].Status = types.StatusConfirmed

	d := Diff(old, cur)
	require.False(t, d.Empty())
	require.Len(t, d.Added, 2)
	assert.Equal(t, "H a2", d.Added[0].Title)
	assert.Equal(t, "H b renamed", d.Added[1].Title)
	require.Len(t, d.Removed, 1)
	assert.Equal(t, "H b", d.Removed[0].Title)
	assert.Equal(t, []Change{{Title: "H a", From: types.StatusPlausible, To: types.StatusConfirmed}}, d.Changed)

	assert.True(t, Diff(old, old).Empty())
}
