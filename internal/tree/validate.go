package tree

import (
	"errors"
	"fmt"

	"github.com/secai/secai/internal/types"
)

// ErrInvalidTree is wrapped by every Validate failure.
var ErrInvalidTree = errors.New("invalid investigation tree")

// Validate checks the structural invariants of a tree: a single root node at
// the top, unique non-empty IDs, no shared or cyclic nodes, known statuses,
// confidence within [0,1] and locks only on terminal statuses.
func Validate(root *types.Node) error {
	if root == nil {
		return fmt.Errorf("%w: empty tree", ErrInvalidTree)
	}
	if root.Type != types.NodeRoot {
		return fmt.Errorf("%w: top node %q has type %q", ErrInvalidTree, root.ID, root.Type)
	}
	seenID := make(map[string]bool)
	seenPtr := make(map[*types.Node]bool)
	var check func(n *types.Node, top bool) error
	check = func(n *types.Node, top bool) error {
		if n == nil {
			return fmt.Errorf("%w: nil child", ErrInvalidTree)
		}
		if seenPtr[n] {
			return fmt.Errorf("%w: node %q reachable twice", ErrInvalidTree, n.ID)
		}
		seenPtr[n] = true
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidTree)
		}
		if seenID[n.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidTree, n.ID)
		}
		seenID[n.ID] = true
		if !top && n.Type == types.NodeRoot {
			return fmt.Errorf("%w: nested root %q", ErrInvalidTree, n.ID)
		}
		if !n.Status.Valid() {
			return fmt.Errorf("%w: node %q has status %q", ErrInvalidTree, n.ID, n.Status)
		}
		if n.Confidence < 0 || n.Confidence > 1 {
			return fmt.Errorf("%w: node %q confidence %v outside [0,1]", ErrInvalidTree, n.ID, n.Confidence)
		}
		if n.Locked && !n.Status.Terminal() {
			return fmt.Errorf("%w: node %q locked while %s", ErrInvalidTree, n.ID, n.Status)
		}
		for _, c := range n.Children {
			if err := check(c, false); err != nil {
				return err
			}
		}
		return nil
	}
	return check(root, true)
}

// Normalize locks every non-root node whose status is terminal. The service
// does not persist the lock flag, so trees fetched from it are normalized on
// ingest. Unchanged subtrees are shared with the input, and a tree that needs
// no change is returned as is.
func Normalize(root *types.Node) *types.Node {
	if root == nil {
		return nil
	}
	out, _ := normalize(root)
	return out
}

func normalize(n *types.Node) (*types.Node, bool) {
	changed := false
	var kids []*types.Node
	for i, c := range n.Children {
		if c == nil {
			continue
		}
		nc, ok := normalize(c)
		if !ok {
			continue
		}
		if kids == nil {
			kids = make([]*types.Node, len(n.Children))
			copy(kids, n.Children)
		}
		kids[i] = nc
		changed = true
	}
	needsLock := n.Type != types.NodeRoot && n.Status.Terminal() && !n.Locked
	if !changed && !needsLock {
		return n, false
	}
	clone := *n
	if kids != nil {
		clone.Children = kids
	}
	if needsLock {
		clone.Locked = true
	}
	return &clone, true
}
