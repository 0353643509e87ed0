// Package redact masks credentials that analysts paste into breach
// descriptions, evidence and notes, so exported reports do not re-leak them.
package redact

import (
	"regexp"
	"sort"

	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

// Rule masks one kind of credential. When Group is non-zero only that
// submatch is replaced, so surrounding context such as the key name stays.
type Rule struct {
	ID      string
	Pattern *regexp.Regexp
	Group   int
}

// Rules is the default rule set, most specific first.
var Rules = []Rule{
	{ID: "private_key_block", Pattern: regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{ID: "aws_access_key", Pattern: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{ID: "aws_secret_key", Pattern: regexp.MustCompile(`(?i)(aws_secret_access_key|aws_secret_key|secretKey)["'\s:=]+([A-Za-z0-9/+=]{40})`), Group: 2},
	{ID: "github_token", Pattern: regexp.MustCompile(`g(hp|ho|hu|hs|hr)_[A-Za-z0-9]{36}`)},
	{ID: "gitlab_token", Pattern: regexp.MustCompile(`\bglpat-[A-Za-z0-9_-]{20}\b`)},
	{ID: "slack_token", Pattern: regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,48}`)},
	{ID: "slack_webhook", Pattern: regexp.MustCompile(`https://hooks\.slack\.com/services/[A-Z0-9]{9,}/[A-Z0-9]{9,}/[A-Za-z0-9]{24,}`)},
	{ID: "stripe_secret", Pattern: regexp.MustCompile(`sk_live_[A-Za-z0-9]{24,}`)},
	{ID: "anthropic_api_key", Pattern: regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{30,}\b`)},
	{ID: "openai_api_key", Pattern: regexp.MustCompile(`\bsk-[A-Za-z0-9]{32,}\b`)},
	{ID: "google_api_key", Pattern: regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`)},
	{ID: "jwt", Pattern: regexp.MustCompile(`eyJ[A-Za-z0-9_-]+?\.[A-Za-z0-9._-]+?\.[A-Za-z0-9._-]+`)},
	{ID: "db_uri_password", Pattern: regexp.MustCompile(`\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^\s:@/]+:([^\s@/]+)@`), Group: 1},
}

// Mask is the replacement text for a match of rule id.
func Mask(id string) string { return "[REDACTED:" + id + "]" }

// Summary counts masked values per rule id.
type Summary map[string]int

// Total is the number of masked values.
func (s Summary) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// IDs returns the rule ids that matched, sorted.
func (s Summary) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Text masks every rule match in s and records hits in sum.
func Text(s string, sum Summary) string {
	for _, r := range Rules {
		s = apply(r, s, sum)
	}
	return s
}

func apply(r Rule, s string, sum Summary) string {
	idx := r.Pattern.FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		return s
	}
	var out []byte
	last := 0
	for _, m := range idx {
		start, end := m[0], m[1]
		if r.Group > 0 {
			start, end = m[2*r.Group], m[2*r.Group+1]
		}
		if start < 0 {
			continue
		}
		out = append(out, s[last:start]...)
		out = append(out, Mask(r.ID)...)
		last = end
		if sum != nil {
			sum[r.ID]++
		}
	}
	out = append(out, s[last:]...)
	return string(out)
}

// Node returns a masked deep copy of root.
func Node(root *types.Node, sum Summary) *types.Node {
	if root == nil {
		return nil
	}
	cp := tree.Clone(root)
	tree.Walk(cp, func(n *types.Node, _ int) bool {
		n.Title = Text(n.Title, sum)
		n.Description = Text(n.Description, sum)
		for i, e := range n.Evidence {
			n.Evidence[i] = Text(e, sum)
		}
		for i := range n.Metadata {
			n.Metadata[i].Value = Text(n.Metadata[i].Value, sum)
		}
		return true
	})
	return cp
}

// Report returns a copy of r with every free-text field masked.
func Report(r types.Report) (types.Report, Summary) {
	sum := Summary{}
	out := r
	out.Title = Text(r.Title, sum)
	out.Summary = Text(r.Summary, sum)
	out.Findings = make([]types.Finding, len(r.Findings))
	for i, f := range r.Findings {
		f.Title = Text(f.Title, sum)
		f.Description = Text(f.Description, sum)
		out.Findings[i] = f
	}
	out.Recommendations = make([]string, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		out.Recommendations[i] = Text(rec, sum)
	}
	out.GraphData = Node(r.GraphData, sum)
	return out, sum
}
