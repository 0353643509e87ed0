package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/secai/secai/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID     string         `json:"ruleId"`
	RuleIndex  int            `json:"ruleIndex"`
	Level      string         `json:"level"`
	Message    sarifMessage   `json:"message"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

const sarifSchema = "https://json.schemastore.org/sarif-2.1.0.json"

func statusToLevel(s types.Status) string {
	switch s {
	case types.StatusConfirmed:
		return "error"
	case types.StatusPlausible:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes report findings as SARIF 2.1.0 results, one rule per status.
func WriteSARIF(w io.Writer, r types.Report, version string) error {
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{Name: "secai", Version: version}},
		Properties: map[string]any{
			"title":     r.Title,
			"timestamp": r.Timestamp,
		},
	}
	ruleIndex := map[string]int{}
	for _, f := range r.Findings {
		id := "hypothesis/" + string(f.Status)
		idx, ok := ruleIndex[id]
		if !ok {
			idx = len(run.Tool.Driver.Rules)
			ruleIndex[id] = idx
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
				ID:               id,
				ShortDescription: sarifMessage{Text: "Hypothesis judged " + string(f.Status)},
			})
		}
		msg := f.Title
		if d := strings.TrimSpace(f.Description); d != "" {
			msg += ": " + d
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:     id,
			RuleIndex:  idx,
			Level:      statusToLevel(f.Status),
			Message:    sarifMessage{Text: msg},
			Properties: map[string]any{"confidence": f.Confidence},
		})
	}
	if run.Results == nil {
		run.Results = []sarifResult{}
	}
	doc := sarif{Schema: sarifSchema, Version: "2.1.0", Runs: []sarifRun{run}}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
