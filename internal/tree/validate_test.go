package tree

import (
	"testing"

	"github.com/secai/secai/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(root *types.Node) *types.Node
		wantErr string
	}{
		{"valid", func(r *types.Node) *types.Node { return r }, ""},
		{"nil", func(*types.Node) *types.Node { return nil }, "empty tree"},
		{"top not root", func(r *types.Node) *types.Node { return r.Children[0] }, "has type"},
		{"duplicate id", func(r *types.Node) *types.Node {
			r.Children[1].Children[0].ID = "a1"
			return r
		}, `duplicate id "a1"`},
		{"nested root", func(r *types.Node) *types.Node {
			r.Children[1].Type = types.NodeRoot
			return r
		}, "nested root"},
		{"bad status", func(r *types.Node) *types.Node {
			r.Children[0].Status = "maybe"
			return r
		}, `status "maybe"`},
		{"confidence range", func(r *types.Node) *types.Node {
			r.Children[0].Confidence = 1.5
			return r
		}, "outside [0,1]"},
		{"lock on open status", func(r *types.Node) *types.Node {
			r.Children[0].Locked = true
			return r
		}, "locked while confirmed"},
		{"shared node", func(r *types.Node) *types.Node {
			r.Children[1].Children = append(r.Children[1].Children, r.Children[0])
			return r
		}, "reachable twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := sample()
			err := Validate(tt.mutate(root))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTree)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalize(t *testing.T) {
	root := sample()
	root.Children[1].Children[0].Status = types.StatusPlausible

	out := Normalize(root)
	b1, _ := Find(out, "b1")
	assert.True(t, b1.Locked)
	assert.Same(t, root.Children[0], out.Children[0], "untouched branch is shared")
	assert.NotSame(t, root.Children[1], out.Children[1])
	assert.False(t, root.Children[1].Children[0].Locked, "input is not mutated")
	assert.NoError(t, Validate(out))

	// idempotent: nothing left to lock
	assert.Same(t, out, Normalize(out))
}

func TestNormalize_RootNeverLocked(t *testing.T) {
	root := &types.Node{ID: "root", Type: types.NodeRoot, Status: types.StatusPlausible}
	assert.False(t, Normalize(root).Locked)
}
