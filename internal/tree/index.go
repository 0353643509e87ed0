package tree

import (
	"github.com/secai/secai/internal/types"
)

// Index maps node IDs to their child-position path so lookups and patches on
// large trees skip the full search. The tree itself stays persistent: Patch
// returns a new root with the same sharing guarantees as the package-level
// Patch. An Index is not safe for concurrent use.
type Index struct {
	root  *types.Node
	paths map[string][]int
}

// NewIndex indexes root in one pre-order walk. For duplicate IDs the first
// occurrence wins, matching Find.
func NewIndex(root *types.Node) *Index {
	ix := &Index{root: root, paths: make(map[string][]int)}
	ix.add(root, nil)
	return ix
}

func (ix *Index) add(n *types.Node, path []int) {
	if n == nil {
		return
	}
	if _, dup := ix.paths[n.ID]; !dup {
		ix.paths[n.ID] = append([]int(nil), path...)
	}
	for i, c := range n.Children {
		ix.add(c, append(path, i))
	}
}

func (ix *Index) remove(n *types.Node) {
	Walk(n, func(d *types.Node, _ int) bool {
		delete(ix.paths, d.ID)
		return true
	})
}

// Root returns the current root.
func (ix *Index) Root() *types.Node { return ix.root }

// Len returns the number of indexed IDs.
func (ix *Index) Len() int { return len(ix.paths) }

// Lookup returns the node for id.
func (ix *Index) Lookup(id string) (*types.Node, bool) {
	path, ok := ix.paths[id]
	if !ok {
		return nil, false
	}
	n := ix.root
	for _, i := range path {
		if n == nil || i >= len(n.Children) {
			return nil, false
		}
		n = n.Children[i]
	}
	return n, n != nil
}

// Patch replaces the node id with fn(node), moves the index to the new root
// and returns it. If fn changes the node's children, the affected subtree is
// reindexed.
func (ix *Index) Patch(id string, fn Transform) *types.Node {
	path, ok := ix.paths[id]
	if !ok {
		return ix.root
	}
	old, ok := ix.Lookup(id)
	if !ok {
		return ix.root
	}
	var replaced *types.Node
	ix.root = PatchAt(ix.root, path, fn, &replaced)
	if replaced != nil && !sameChildren(old.Children, replaced.Children) {
		for _, c := range old.Children {
			ix.remove(c)
		}
		for i, c := range replaced.Children {
			ix.add(c, append(append([]int(nil), path...), i))
		}
	}
	return ix.root
}

// Attach appends the children whose IDs are not yet in the tree to the node
// parentID and returns how many were added. It matches AttachChildren but
// checks IDs against the index instead of walking the tree.
func (ix *Index) Attach(parentID string, children []*types.Node) int {
	if _, ok := ix.paths[parentID]; !ok {
		return 0
	}
	seen := make(map[string]bool, len(children))
	fresh := make([]*types.Node, 0, len(children))
	for _, c := range children {
		if c == nil || seen[c.ID] {
			continue
		}
		if _, dup := ix.paths[c.ID]; dup {
			continue
		}
		seen[c.ID] = true
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return 0
	}
	ix.Patch(parentID, func(n types.Node) types.Node {
		kids := make([]*types.Node, 0, len(n.Children)+len(fresh))
		kids = append(kids, n.Children...)
		n.Children = append(kids, fresh...)
		return n
	})
	return len(fresh)
}

// PatchAt is Patch addressed by child positions instead of ID. If replaced is
// non-nil it receives the new node. An invalid path returns root unchanged.
func PatchAt(root *types.Node, path []int, fn Transform, replaced **types.Node) *types.Node {
	if root == nil {
		return nil
	}
	if len(path) == 0 {
		n := apply(root, fn)
		if replaced != nil {
			*replaced = n
		}
		return n
	}
	i := path[0]
	if i < 0 || i >= len(root.Children) || root.Children[i] == nil {
		return root
	}
	child := PatchAt(root.Children[i], path[1:], fn, replaced)
	if child == root.Children[i] {
		return root
	}
	return withChild(root, i, child)
}

func sameChildren(a, b []*types.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
