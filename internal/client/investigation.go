package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

// DefaultInvestigationURL is where the investigation service listens by default.
const DefaultInvestigationURL = "http://localhost:8000"

// Investigation is a client for the hypothesis investigation service. It
// satisfies lifecycle.StatusUpdater and lifecycle.Expander.
type Investigation struct {
	base
}

// NewInvestigation creates an investigation client for baseURL.
func NewInvestigation(baseURL string, opts ...Option) (*Investigation, error) {
	b, err := newBase("investigation", baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &Investigation{base: b}, nil
}

func nodePath(id, suffix string) string {
	return "/api/investigation/node/" + url.PathEscape(id) + suffix
}

// Start opens a new investigation for the breach description and returns its tree.
func (c *Investigation) Start(ctx context.Context, breachInfo string, initial int) (*types.Node, error) {
	in := struct {
		BreachInfo      string `json:"breach_info"`
		NumInitialNodes int    `json:"num_initial_nodes,omitempty"`
	}{breachInfo, initial}
	var root types.Node
	if err := c.doJSON(ctx, http.MethodPost, "/api/investigation/start", "start investigation", in, &root); err != nil {
		return nil, err
	}
	if err := checkTree("start investigation", &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// Tree fetches the current investigation tree.
func (c *Investigation) Tree(ctx context.Context) (*types.Node, error) {
	var root types.Node
	if err := c.doJSON(ctx, http.MethodGet, "/api/investigation/tree", "get tree", nil, &root); err != nil {
		return nil, err
	}
	if err := checkTree("get tree", &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func checkTree(op string, root *types.Node) error {
	if root.ID == "" {
		return fmt.Errorf("%s: %w: tree has no root id", op, ErrMalformedResponse)
	}
	return nil
}

// UpdateStatus records a verdict for node id.
func (c *Investigation) UpdateStatus(ctx context.Context, id string, status types.Status) error {
	in := struct {
		Status types.Status `json:"status"`
	}{status}
	return c.doJSON(ctx, http.MethodPut, nodePath(id, "/status"), "update status", in, nil)
}

// ExpandIDs asks the generator for count children of parentID and returns
// the ids it created.
func (c *Investigation) ExpandIDs(ctx context.Context, parentID string, count int) ([]string, error) {
	in := struct {
		NumNodes int `json:"num_nodes"`
	}{count}
	var out struct {
		NodeIDs *[]string `json:"node_ids"`
	}
	if err := c.doJSON(ctx, http.MethodPost, nodePath(parentID, "/expand"), "expand node", in, &out); err != nil {
		return nil, err
	}
	if out.NodeIDs == nil {
		return nil, fmt.Errorf("expand node: %w: missing node_ids", ErrMalformedResponse)
	}
	return *out.NodeIDs, nil
}

// Expand generates children of parentID and returns them as nodes. The
// service only answers with ids, so the tree is fetched again to resolve them.
func (c *Investigation) Expand(ctx context.Context, parentID string, count int) ([]*types.Node, error) {
	ids, err := c.ExpandIDs(ctx, parentID, count)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	root, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	parent, ok := tree.Find(root, parentID)
	if !ok {
		return nil, fmt.Errorf("expand node: %w: parent %s missing from refreshed tree", ErrMalformedResponse, parentID)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var kids []*types.Node
	for _, k := range parent.Children {
		if k != nil && want[k.ID] {
			kids = append(kids, k)
		}
	}
	c.log.Debugw("expansion resolved", "parent", parentID, "requested", count, "ids", len(ids), "resolved", len(kids))
	return kids, nil
}

// Details fetches the detail view of node id.
func (c *Investigation) Details(ctx context.Context, id string) (*types.NodeDetails, error) {
	var d types.NodeDetails
	if err := c.doJSON(ctx, http.MethodGet, nodePath(id, "/details"), "node details", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Narrative asks the service to write the report text. Only the title,
// summary and recommendations are used; findings are derived locally.
func (c *Investigation) Narrative(ctx context.Context) (report.Narrative, error) {
	var out struct {
		Title           string   `json:"title"`
		Summary         *string  `json:"summary"`
		Recommendations []string `json:"recommendations"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/investigation/report", "generate report", nil, &out); err != nil {
		return report.Narrative{}, err
	}
	if out.Summary == nil {
		return report.Narrative{}, fmt.Errorf("generate report: %w: missing summary", ErrMalformedResponse)
	}
	return report.Narrative{Title: out.Title, Summary: *out.Summary, Recommendations: out.Recommendations}, nil
}
