// Package roadmap parses the free-text remediation roadmap into time-boxed
// sections and action items.
package roadmap

import (
	"errors"
	"regexp"
	"strings"

	"github.com/secai/secai/internal/types"
)

// Horizon is the time box of a roadmap section.
type Horizon string

const (
	Immediate  Horizon = "immediate"
	ShortTerm  Horizon = "short_term"
	MediumTerm Horizon = "medium_term"
)

// DefaultResponsible is assigned to items that name no owner.
const DefaultResponsible = "Security Team"

var horizons = []struct {
	prefix  string
	horizon Horizon
	label   string
}{
	{"1.", Immediate, "Immediate Actions (Next 24-48 hours)"},
	{"2.", ShortTerm, "Short-term Actions (Next Week)"},
	{"3.", MediumTerm, "Medium-term Actions (Next Month)"},
}

// Label returns the heading for h.
func (h Horizon) Label() string {
	for _, hz := range horizons {
		if hz.horizon == h {
			return hz.label
		}
	}
	return ""
}

// ErrMalformed is returned for a roadmap payload without any text.
var ErrMalformed = errors.New("roadmap data is not in the expected format")

// Section is one blank-line separated block of the roadmap. Horizon and
// Label are empty for blocks without a numbered prefix.
type Section struct {
	Horizon Horizon `json:"horizon,omitempty"`
	Label   string  `json:"label,omitempty"`
	Body    string  `json:"body"`
}

// Item is one parsed action line.
type Item struct {
	Action      string `json:"action"`
	Responsible string `json:"responsible"`
	Rationale   string `json:"rationale"`
}

// Text returns the roadmap text, preferring Content over RawText.
func Text(r types.Roadmap) (string, error) {
	if r.Content != nil && *r.Content != "" {
		return *r.Content, nil
	}
	if r.RawText != nil && *r.RawText != "" {
		return *r.RawText, nil
	}
	return "", ErrMalformed
}

// Sections splits text on blank lines. Blocks starting with "1.", "2." or
// "3." are labelled with their horizon and lose the prefix; other blocks pass
// through unlabelled.
func Sections(text string) []Section {
	var out []Section
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		sec := Section{Body: s}
		for _, hz := range horizons {
			if strings.HasPrefix(s, hz.prefix) {
				sec = Section{
					Horizon: hz.horizon,
					Label:   hz.label,
					Body:    strings.TrimSpace(s[len(hz.prefix):]),
				}
				break
			}
		}
		out = append(out, sec)
	}
	return out
}

var (
	ownerRe  = regexp.MustCompile(`\((.*?)\)`)
	bulletRe = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
	sepRe    = regexp.MustCompile(`\s[-–]\s`)
)

// ParseLine splits "action (responsible) - rationale". The first
// parenthesised group names the owner; text after the first spaced dash is
// the rationale, so hyphenated words stay intact.
func ParseLine(line string) Item {
	line = strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
	it := Item{Responsible: DefaultResponsible}
	if m := ownerRe.FindStringSubmatch(line); m != nil {
		it.Responsible = strings.TrimSpace(m[1])
	}
	if loc := sepRe.FindStringIndex(line); loc != nil {
		it.Rationale = strings.TrimSpace(line[loc[1]:])
		line = line[:loc[0]]
	}
	it.Action = strings.Join(strings.Fields(ownerRe.ReplaceAllString(line, "")), " ")
	return it
}

// Items parses every non-empty line of a section body.
func Items(s Section) []Item {
	var out []Item
	for _, line := range strings.Split(s.Body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if it := ParseLine(line); it.Action != "" {
			out = append(out, it)
		}
	}
	return out
}

// Structure groups the items of every labelled section by horizon.
func Structure(sections []Section) map[Horizon][]Item {
	out := map[Horizon][]Item{}
	for _, s := range sections {
		if s.Horizon == "" {
			continue
		}
		out[s.Horizon] = append(out[s.Horizon], Items(s)...)
	}
	return out
}

// Markdown renders sections as a markdown document.
func Markdown(sections []Section) string {
	var b strings.Builder
	b.WriteString("# Remediation Roadmap\n\n")
	for _, s := range sections {
		if s.Label == "" {
			b.WriteString(s.Body)
			b.WriteString("\n\n")
			continue
		}
		b.WriteString("## " + s.Label + "\n\n")
		for _, it := range Items(s) {
			b.WriteString("- **" + it.Action + "**\n")
			b.WriteString("  - *Responsible*: " + it.Responsible + "\n")
			if it.Rationale != "" {
				b.WriteString("  - *Rationale*: " + it.Rationale + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
