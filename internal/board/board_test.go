package board

import (
	"bytes"
	"testing"

	"github.com/secai/secai/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *types.Node {
	return &types.Node{
		ID: "root", Title: "Breach", Type: types.NodeRoot, Status: types.StatusUnverified,
		Metadata: types.MetadataOf("source", "soc"),
		Children: []*types.Node{
			{ID: "a", Title: "Phishing", Type: types.NodeHypothesis, Status: types.StatusPlausible, Confidence: 0.7,
				Children: []*types.Node{
					{ID: "a1", Title: "Credential reuse", Type: types.NodeHypothesis, Status: types.StatusUnverified, Confidence: 0.5},
				}},
			{ID: "b", Title: "Insider", Type: types.NodeHypothesis, Status: types.StatusImplausible, Confidence: 0.2},
		},
	}
}

func TestProject(t *testing.T) {
	nodes := Project(sampleTree())
	require.Len(t, nodes, 4)

	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"root", "a", "a1", "b"}, ids)
	assert.Equal(t, types.BoardNode{
		ID: "a1", Title: "Credential reuse", Type: types.NodeHypothesis,
		Status: types.StatusUnverified, Confidence: 0.5, Depth: 2,
	}, nodes[2])
	assert.Equal(t, 0, nodes[0].Depth)
	assert.Nil(t, Project(nil))
}

func TestFilter(t *testing.T) {
	nodes := Project(sampleTree())
	got := Filter(nodes, types.StatusPlausible, types.StatusImplausible)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Len(t, Filter(nodes), 4)
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, Project(sampleTree())))
	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "Credential reuse")
	assert.Contains(t, out, "70%")
	assert.Contains(t, out, "│")

	buf.Reset()
	require.NoError(t, PrintTable(&buf, nil))
	assert.Contains(t, buf.String(), "Board is empty")
}
