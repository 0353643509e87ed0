package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// NodeType distinguishes the single investigation root from generated hypotheses.
type NodeType string

const (
	NodeRoot       NodeType = "root"
	NodeHypothesis NodeType = "hypothesis"
)

// Status is the adjudication state of a hypothesis.
type Status string

const (
	StatusUnverified  Status = "unverified"
	StatusConfirmed   Status = "confirmed"
	StatusPlausible   Status = "plausible"
	StatusImplausible Status = "implausible"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusConfirmed, StatusPlausible, StatusImplausible:
		return true
	}
	return false
}

// Terminal reports whether a node in this status is locked against further changes.
func (s Status) Terminal() bool {
	return s == StatusPlausible || s == StatusImplausible
}

// Node is one element of the investigation tree. Trees are treated as
// immutable values: update them through the tree package, never in place.
type Node struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        NodeType `json:"type"`
	Status      Status   `json:"status"`
	Confidence  float64  `json:"confidence"`
	Locked      bool     `json:"locked"`
	Metadata    Metadata `json:"metadata"`
	Evidence    []string `json:"evidence"`
	Children    []*Node  `json:"children"`
}

// IsRoot reports whether n is the investigation root.
func (n *Node) IsRoot() bool { return n != nil && n.Type == NodeRoot }

// Reasoning returns the generator's reasoning for the hypothesis, if any.
func (n *Node) Reasoning() string {
	if n == nil {
		return ""
	}
	return n.Metadata.Get("reasoning")
}

// Metadata holds free-form string annotations on a node in the order the
// backend sent them. A nil Metadata encodes as null, an empty one as {}.
type Metadata []MetadataEntry

// MetadataEntry is one annotation.
type MetadataEntry struct {
	Key   string
	Value string
}

// MetadataOf builds Metadata from alternating keys and values.
func MetadataOf(kv ...string) Metadata {
	m := make(Metadata, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

// Lookup returns the value stored under key.
func (m Metadata) Lookup(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Get returns the value stored under key, or "".
func (m Metadata) Get(key string) string {
	v, _ := m.Lookup(key)
	return v
}

// Set replaces the value of key in place, or appends it.
func (m *Metadata) Set(key, value string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, MetadataEntry{Key: key, Value: value})
}

// Keys returns the keys in order.
func (m Metadata) Keys() []string {
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Key
	}
	return out
}

// Clone returns an independent copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return append(Metadata{}, m...)
}

// MarshalJSON writes the entries as a JSON object in stored order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the key order of the object. Numbers, booleans and
// nested values from the backend are stored in their JSON text form; a
// repeated key keeps its first position and its last value.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata: expected object, got %v", tok)
	}
	out := Metadata{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("metadata %q: %w", key, err)
		}
		var s string
		switch {
		case json.Unmarshal(raw, &s) == nil:
		case string(raw) == "null":
			s = ""
		default:
			var c bytes.Buffer
			if err := json.Compact(&c, raw); err != nil {
				return fmt.Errorf("metadata %q: %w", key, err)
			}
			s = c.String()
		}
		out.Set(key, s)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = out
	return nil
}

// Finding summarizes one adjudicated hypothesis inside a report.
type Finding struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	Confidence  float64 `json:"confidence"`
}

// ConfidencePct renders confidence as a whole percentage.
func (f Finding) ConfidencePct() string {
	return strconv.Itoa(int(f.Confidence*100+0.5)) + "%"
}

// Report is a frozen snapshot of an investigation.
type Report struct {
	Title           string    `json:"title"`
	Timestamp       time.Time `json:"timestamp"`
	Summary         string    `json:"summary"`
	Findings        []Finding `json:"findings"`
	Recommendations []string  `json:"recommendations"`
	GraphData       *Node     `json:"graph_data"`
}

// BoardNode is the childless projection of a Node used by the remediation board.
type BoardNode struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        NodeType `json:"type"`
	Status      Status   `json:"status"`
	Confidence  float64  `json:"confidence"`
	Depth       int      `json:"depth"`
}

// NodeDetails is the detail view of a node returned by the investigation service.
type NodeDetails struct {
	Title       string   `json:"title"`
	Type        NodeType `json:"type"`
	Status      Status   `json:"status"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
	Metadata    Metadata `json:"metadata"`
}

// PerspectiveType names one of the fixed analytical viewpoints.
type PerspectiveType string

const (
	PerspectiveExpert     PerspectiveType = "expert"
	PerspectiveAttacker   PerspectiveType = "attacker"
	PerspectiveBusiness   PerspectiveType = "business"
	PerspectiveCompliance PerspectiveType = "compliance"
)

// PerspectiveTypes lists every viewpoint in display order.
var PerspectiveTypes = []PerspectiveType{
	PerspectiveExpert,
	PerspectiveAttacker,
	PerspectiveBusiness,
	PerspectiveCompliance,
}

// ParsePerspectiveType validates s as a perspective name.
func ParsePerspectiveType(s string) (PerspectiveType, error) {
	for _, t := range PerspectiveTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown perspective %q (want expert|attacker|business|compliance)", s)
}

// Perspective is one generated viewpoint. Selected is nil until the analyst
// accepts or rejects it.
type Perspective struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Selected *bool  `json:"selected"`
}

// Perspectives is the set returned for a board node; absent viewpoints are nil.
type Perspectives struct {
	Expert     *Perspective `json:"expert,omitempty"`
	Attacker   *Perspective `json:"attacker,omitempty"`
	Business   *Perspective `json:"business,omitempty"`
	Compliance *Perspective `json:"compliance,omitempty"`
}

// Get returns the perspective of type t, or nil.
func (p *Perspectives) Get(t PerspectiveType) *Perspective {
	if p == nil {
		return nil
	}
	switch t {
	case PerspectiveExpert:
		return p.Expert
	case PerspectiveAttacker:
		return p.Attacker
	case PerspectiveBusiness:
		return p.Business
	case PerspectiveCompliance:
		return p.Compliance
	}
	return nil
}

// Roadmap is the remediation plan payload. Either field may carry the text.
type Roadmap struct {
	Content *string `json:"content,omitempty"`
	RawText *string `json:"raw_text,omitempty"`
}

// Clone returns a deep copy of p. A nil receiver yields an empty set.
func (p *Perspectives) Clone() *Perspectives {
	if p == nil {
		return &Perspectives{}
	}
	cp := func(x *Perspective) *Perspective {
		if x == nil {
			return nil
		}
		c := *x
		if x.Selected != nil {
			v := *x.Selected
			c.Selected = &v
		}
		return &c
	}
	return &Perspectives{
		Expert:     cp(p.Expert),
		Attacker:   cp(p.Attacker),
		Business:   cp(p.Business),
		Compliance: cp(p.Compliance),
	}
}
