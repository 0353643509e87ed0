// Package report derives report documents from investigation trees and
// renders them for terminals and code-scanning tools.
package report

import (
	"time"

	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

// DefaultTitle is used when the narrative carries no title.
const DefaultTitle = "Security Investigation Report"

// Narrative is the text produced by the report generator. It is copied into
// the report verbatim.
type Narrative struct {
	Title           string
	Summary         string
	Recommendations []string
}

// Build snapshots root into a Report. Findings are the non-root nodes whose
// status is not unverified, in pre-order. GraphData is a deep copy, so later
// changes to the live tree are not visible through the report.
func Build(root *types.Node, n Narrative, now time.Time) types.Report {
	title := n.Title
	if title == "" {
		title = DefaultTitle
	}
	r := types.Report{
		Title:           title,
		Timestamp:       now.UTC(),
		Summary:         n.Summary,
		Findings:        Findings(root),
		Recommendations: append([]string{}, n.Recommendations...),
		GraphData:       tree.Clone(root),
	}
	return r
}

// Findings collects one finding per adjudicated hypothesis, parents before
// children and siblings in child order.
func Findings(root *types.Node) []types.Finding {
	out := []types.Finding{}
	tree.Walk(root, func(n *types.Node, _ int) bool {
		if n.Type != types.NodeRoot && n.Status != types.StatusUnverified {
			out = append(out, types.Finding{
				Title:       n.Title,
				Description: n.Description,
				Status:      n.Status,
				Confidence:  n.Confidence,
			})
		}
		return true
	})
	return out
}

// Counts tallies findings per status.
func Counts(findings []types.Finding) map[types.Status]int {
	c := make(map[types.Status]int)
	for _, f := range findings {
		c[f.Status]++
	}
	return c
}
