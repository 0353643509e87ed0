package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/secai/secai/internal/types"
)

// DefaultRemediationURL is where the remediation service listens by default.
const DefaultRemediationURL = "http://localhost:8001"

// Remediation is a client for the remediation planning service.
type Remediation struct {
	base
}

// NewRemediation creates a remediation client for baseURL.
func NewRemediation(baseURL string, opts ...Option) (*Remediation, error) {
	b, err := newBase("remediation", baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Remediation{base: b}, nil
}

func remediationNode(id, suffix string) string {
	return "/api/remediation/node/" + url.PathEscape(id) + suffix
}

// Load points the service at an exported investigation tree and returns the
// number of board nodes it produced.
func (c *Remediation) Load(ctx context.Context, treePath, docPath string) (int, error) {
	if treePath == "" {
		return 0, fmt.Errorf("load investigation: tree path is required")
	}
	in := struct {
		TreePath string `json:"tree_path"`
		DocPath  string `json:"documentation_path,omitempty"`
	}{treePath, docPath}
	var out struct {
		NodeCount int `json:"node_count"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/remediation/load", "load investigation", in, &out); err != nil {
		return 0, err
	}
	return out.NodeCount, nil
}

// Board lists the flattened investigation nodes.
func (c *Remediation) Board(ctx context.Context) ([]types.BoardNode, error) {
	var nodes []types.BoardNode
	if err := c.doJSON(ctx, http.MethodGet, "/api/remediation/board", "get board", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Perspectives generates the viewpoints for node id.
func (c *Remediation) Perspectives(ctx context.Context, id string) (*types.Perspectives, error) {
	var p types.Perspectives
	if err := c.doJSON(ctx, http.MethodPost, remediationNode(id, "/perspectives"), "generate perspectives", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Select accepts or rejects one perspective of node id.
func (c *Remediation) Select(ctx context.Context, id string, t types.PerspectiveType, selected bool) error {
	in := struct {
		Selected bool `json:"selected"`
	}{selected}
	return c.doJSON(ctx, http.MethodPut, remediationNode(id, "/perspective/"+url.PathEscape(string(t))), "select perspective", in, nil)
}

// Note attaches analyst notes to node id.
func (c *Remediation) Note(ctx context.Context, id, content string) error {
	in := struct {
		Content string `json:"content"`
	}{content}
	return c.doJSON(ctx, http.MethodPut, remediationNode(id, "/input"), "add note", in, nil)
}

// Roadmap generates the remediation roadmap from the selected perspectives.
func (c *Remediation) Roadmap(ctx context.Context) (types.Roadmap, error) {
	var r types.Roadmap
	if err := c.doJSON(ctx, http.MethodPost, "/api/remediation/roadmap", "generate roadmap", nil, &r); err != nil {
		return types.Roadmap{}, err
	}
	return r, nil
}
