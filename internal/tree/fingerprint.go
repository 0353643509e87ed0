package tree

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/secai/secai/internal/types"
)

// Fingerprint returns a stable hex digest of the tree's JSON form. Two trees
// with the same content share a fingerprint regardless of pointer identity.
func Fingerprint(root *types.Node) string {
	b, err := json.Marshal(root)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
