package report

import (
	"fmt"
	"io"

	"github.com/secai/secai/internal/types"
)

// Change records a finding whose verdict differs between two reports.
type Change struct {
	Title string
	From  types.Status
	To    types.Status
}

// Delta is the difference between two reports, keyed by finding title.
type Delta struct {
	Added   []types.Finding
	Removed []types.Finding
	Changed []Change
}

// Empty reports whether the two reports carry the same verdicts.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares the findings of old and cur. Order follows cur for added and
// changed entries and old for removed ones.
func Diff(old, cur types.Report) Delta {
	before := make(map[string]types.Finding, len(old.Findings))
	for _, f := range old.Findings {
		before[key(f)] = f
	}
	after := make(map[string]bool, len(cur.Findings))
	var d Delta
	for _, f := range cur.Findings {
		after[key(f)] = true
		prev, ok := before[key(f)]
		switch {
		case !ok:
			d.Added = append(d.Added, f)
		case prev.Status != f.Status:
			d.Changed = append(d.Changed, Change{Title: f.Title, From: prev.Status, To: f.Status})
		}
	}
	for _, f := range old.Findings {
		if !after[key(f)] {
			d.Removed = append(d.Removed, f)
		}
	}
	return d
}

func key(f types.Finding) string {
	return f.Title
}

// PrintDelta writes a human-readable summary of d.
func PrintDelta(w io.Writer, d Delta) {
	if d.Empty() {
		fmt.Fprintln(w, "No differences")
		return
	}
	for _, f := range d.Added {
		fmt.Fprintf(w, "+ %s [%s]\n", f.Title, f.Status)
	}
	for _, f := range d.Removed {
		fmt.Fprintf(w, "- %s [%s]\n", f.Title, f.Status)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(w, "~ %s [%s -> %s]\n", c.Title, c.From, c.To)
	}
}
