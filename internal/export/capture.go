package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	_ "image/png"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/secai/secai/internal/types"
)

// GraphCapturer rasterizes an investigation tree to PNG.
type GraphCapturer interface {
	Capture(ctx context.Context, root *types.Node) ([]byte, error)
}

// ChromeCapturer renders the tree as HTML and screenshots it with headless Chrome.
type ChromeCapturer struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// Width is the viewport width in CSS pixels.
	Width   int
	Timeout time.Duration
}

var graphTemplate = template.Must(template.New("graph").Funcs(template.FuncMap{
	"pct": func(c float64) float64 { return c * 100 },
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Helvetica, Arial, sans-serif; margin: 24px; background: #fff; }
ul { list-style: none; padding-left: 28px; border-left: 2px solid #d0d7de; margin: 6px 0; }
#graph > ul { border-left: none; padding-left: 0; }
.node { display: inline-block; padding: 6px 10px; margin: 4px 0; border-radius: 6px; border: 2px solid #8c959f; min-width: 220px; }
.node .title { font-weight: bold; font-size: 14px; }
.node .meta { font-size: 11px; color: #57606a; }
.root { background: #ddf4ff; border-color: #0969da; }
.unverified { background: #f6f8fa; }
.confirmed { background: #ffebe9; border-color: #cf222e; }
.plausible { background: #fff8c5; border-color: #bf8700; }
.implausible { background: #dafbe1; border-color: #1a7f37; }
</style></head><body><div id="graph"><ul>{{template "node" .}}</ul></div></body></html>
{{define "node"}}<li><div class="node {{if eq .Type "root"}}root{{else}}{{.Status}}{{end}}">
<div class="title">{{.Title}}</div>
<div class="meta">{{.Status}} · {{printf "%.0f" (pct .Confidence)}}%{{if .Locked}} · locked{{end}}</div>
</div>{{if .Children}}<ul>{{range .Children}}{{template "node" .}}{{end}}</ul>{{end}}</li>{{end}}`))

// RenderGraphHTML renders the tree as a standalone HTML page.
func RenderGraphHTML(root *types.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := graphTemplate.Execute(&buf, root); err != nil {
		return nil, fmt.Errorf("render graph html: %w", err)
	}
	return buf.Bytes(), nil
}

// Capture implements GraphCapturer.
func (c ChromeCapturer) Capture(ctx context.Context, root *types.Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("capture graph: empty tree")
	}
	page, err := RenderGraphHTML(root)
	if err != nil {
		return nil, err
	}
	width := c.Width
	if width <= 0 {
		width = 1200
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var shot []byte
	err = chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(width), 800),
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString(page)),
		chromedp.WaitVisible("#graph", chromedp.ByID),
		// quality 100 yields PNG
		chromedp.FullScreenshot(&shot, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capture graph: %w", err)
	}
	return shot, nil
}

// DecodeImage reads the pixel size of a PNG capture.
func DecodeImage(name string, data []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode graph image: %w", err)
	}
	if format != "png" {
		return nil, fmt.Errorf("decode graph image: unexpected format %s", format)
	}
	return &Image{Name: name, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}
