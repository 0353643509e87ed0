// Package offline is an in-process stand-in for the investigation and
// remediation services. It generates placeholder content so the whole
// workflow runs without a network or a model.
package offline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/secai/secai/internal/types"
)

// Generator produces child hypotheses for a parent node.
type Generator interface {
	Generate(parent *types.Node, n int) []*types.Node
}

// vector is one entry of the placeholder hypothesis catalogue.
type vector struct {
	title, description string
}

var catalogue = []vector{
	{"Credential stuffing", "Reused passwords from a third-party leak were replayed against an exposed login."},
	{"Phishing with credential harvest", "A user entered credentials on a lookalike sign-in page."},
	{"Vulnerable edge appliance", "An unpatched VPN or firewall appliance allowed remote code execution."},
	{"Misconfigured cloud storage", "A storage bucket or share was readable without authentication."},
	{"Insider misuse", "An account holder with legitimate access exfiltrated data."},
	{"Supply chain compromise", "A dependency or vendor update carried attacker code."},
	{"Lateral movement via remote services", "The attacker pivoted over SMB or RDP using harvested credentials."},
	{"Token or key leakage", "An API key or session token was exposed in code, logs or tickets."},
}

var stopWords = map[string]bool{
	"the": true, "and": true, "with": true, "from": true, "were": true, "been": true,
	"being": true, "have": true, "that": true, "this": true, "than": true, "then": true,
	"when": true, "where": true, "which": true, "into": true, "over": true, "some": true,
	"such": true, "only": true, "very": true, "will": true, "just": true, "should": true,
}

// Keywords extracts up to limit distinctive words, longest first.
func Keywords(text string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if len(w) <= 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TemplateGenerator picks hypotheses from a fixed catalogue. The choice is
// keyed on the parent so regenerating the same branch is stable; ids are
// random.
type TemplateGenerator struct{}

// Generate implements Generator.
func (TemplateGenerator) Generate(parent *types.Node, n int) []*types.Node {
	if parent == nil || n <= 0 {
		return nil
	}
	seed := xxhash.Sum64String(parent.ID + "\x00" + parent.Title)
	kw := Keywords(parent.Title+" "+parent.Description, 5)
	level := 1
	if d, err := strconv.Atoi(parent.Metadata.Get("depth")); err == nil {
		level = d + 1
	}
	out := make([]*types.Node, 0, n)
	for i := 0; i < n; i++ {
		v := catalogue[(seed+uint64(i))%uint64(len(catalogue))]
		title := v.title
		if !parent.IsRoot() {
			title = fmt.Sprintf("%s (follow-up to %s)", v.title, parent.Title)
		}
		reasoning := "Placeholder hypothesis generated offline."
		if len(kw) > 0 {
			reasoning = "Generated offline from keywords: " + strings.Join(kw, ", ")
		}
		out = append(out, &types.Node{
			ID:          uuid.NewString(),
			Title:       title,
			Description: v.description,
			Type:        types.NodeHypothesis,
			Status:      types.StatusUnverified,
			Confidence:  0.5,
			Metadata: types.MetadataOf(
				"reasoning", reasoning,
				"generator", "offline",
				"depth", strconv.Itoa(level),
			),
			Evidence: []string{},
			Children: []*types.Node{},
		})
	}
	return out
}
