// Package board projects an investigation tree onto the flat node list used
// by the remediation board.
package board

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

// Project flattens root in pre-order, root included. Children and metadata
// are dropped; Depth records the distance from the root.
func Project(root *types.Node) []types.BoardNode {
	var out []types.BoardNode
	tree.Walk(root, func(n *types.Node, depth int) bool {
		out = append(out, types.BoardNode{
			ID:          n.ID,
			Title:       n.Title,
			Description: n.Description,
			Type:        n.Type,
			Status:      n.Status,
			Confidence:  n.Confidence,
			Depth:       depth,
		})
		return true
	})
	return out
}

// Filter keeps the nodes whose status is one of statuses. No statuses keeps all.
func Filter(nodes []types.BoardNode, statuses ...types.Status) []types.BoardNode {
	if len(statuses) == 0 {
		return nodes
	}
	want := make(map[types.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []types.BoardNode
	for _, n := range nodes {
		if want[n.Status] {
			out = append(out, n)
		}
	}
	return out
}

// PrintTable renders nodes as a table, indenting titles by depth.
func PrintTable(w io.Writer, nodes []types.BoardNode) error {
	if len(nodes) == 0 {
		_, err := fmt.Fprintln(w, "Board is empty")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Title", "Type", "Status", "Confidence")
	for _, n := range nodes {
		if err := table.Append([]string{
			n.ID,
			strings.Repeat("  ", n.Depth) + n.Title,
			string(n.Type),
			string(n.Status),
			fmt.Sprintf("%.0f%%", n.Confidence*100),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
