// Package tree holds the persistent investigation tree primitives. Every
// update returns a new root; nodes off the updated path are shared with the
// input, so old roots stay valid snapshots.
package tree

import (
	"github.com/secai/secai/internal/types"
)

// Transform rewrites a node. It receives a shallow copy: maps and slices are
// still shared with the input tree and must be replaced, not mutated.
type Transform func(n types.Node) types.Node

// Find returns the first node in pre-order whose ID matches.
func Find(root *types.Node, id string) (*types.Node, bool) {
	if root == nil {
		return nil, false
	}
	if root.ID == id {
		return root, true
	}
	for _, c := range root.Children {
		if n, ok := Find(c, id); ok {
			return n, true
		}
	}
	return nil, false
}

// Patch returns a tree in which the node with id is replaced by fn(node).
// Ancestors of that node are cloned; every other subtree keeps its pointer.
// When id is absent the input root is returned as is.
func Patch(root *types.Node, id string, fn Transform) *types.Node {
	if root == nil {
		return nil
	}
	if out, ok := patch(root, id, fn); ok {
		return out
	}
	return root
}

func patch(n *types.Node, id string, fn Transform) (*types.Node, bool) {
	if n.ID == id {
		return apply(n, fn), true
	}
	for i, c := range n.Children {
		if c == nil {
			continue
		}
		if nc, ok := patch(c, id, fn); ok {
			return withChild(n, i, nc), true
		}
	}
	return nil, false
}

// apply runs fn on a copy of n. ID and Type are fixed for the life of a node.
func apply(n *types.Node, fn Transform) *types.Node {
	next := fn(*n)
	next.ID = n.ID
	next.Type = n.Type
	return &next
}

// withChild shallow-clones n with child i swapped for c.
func withChild(n *types.Node, i int, c *types.Node) *types.Node {
	clone := *n
	clone.Children = make([]*types.Node, len(n.Children))
	copy(clone.Children, n.Children)
	clone.Children[i] = c
	return &clone
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's children.
func Walk(root *types.Node, fn func(n *types.Node, depth int) bool) {
	walk(root, 0, fn)
}

func walk(n *types.Node, depth int, fn func(*types.Node, int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Count returns the number of nodes in the tree.
func Count(root *types.Node) int {
	total := 0
	Walk(root, func(*types.Node, int) bool {
		total++
		return true
	})
	return total
}

// Clone returns a deep copy sharing nothing with root. Nil-ness of
// slices is preserved so clones compare equal to their source.
func Clone(root *types.Node) *types.Node {
	if root == nil {
		return nil
	}
	out := *root
	out.Metadata = root.Metadata.Clone()
	if root.Evidence != nil {
		out.Evidence = append([]string{}, root.Evidence...)
	}
	if root.Children != nil {
		out.Children = make([]*types.Node, len(root.Children))
		for i, c := range root.Children {
			out.Children[i] = Clone(c)
		}
	}
	return &out
}

// AttachChildren appends generated offspring to the node parentID. Children
// whose ID already exists somewhere in the tree are skipped, so replaying the
// same expansion is harmless. The returned count is the number attached.
func AttachChildren(root *types.Node, parentID string, children []*types.Node) (*types.Node, int) {
	if _, ok := Find(root, parentID); !ok {
		return root, 0
	}
	seen := ids(root)
	fresh := make([]*types.Node, 0, len(children))
	for _, c := range children {
		if c == nil || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return root, 0
	}
	out := Patch(root, parentID, func(n types.Node) types.Node {
		kids := make([]*types.Node, 0, len(n.Children)+len(fresh))
		kids = append(kids, n.Children...)
		n.Children = append(kids, fresh...)
		return n
	})
	return out, len(fresh)
}

func ids(root *types.Node) map[string]bool {
	seen := make(map[string]bool)
	Walk(root, func(n *types.Node, _ int) bool {
		seen[n.ID] = true
		return true
	})
	return seen
}
