package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Format is an export artifact type.
type Format string

const (
	FormatJSON  Format = "json"
	FormatPDF   Format = "pdf"
	FormatSARIF Format = "sarif"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatPDF, FormatSARIF}

// ParseFormats parses a comma-separated format list such as "json,pdf".
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		switch f {
		case FormatJSON, FormatPDF, FormatSARIF:
		default:
			return nil, fmt.Errorf("unknown export format %q (want json|pdf|sarif)", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export format given")
	}
	return out, nil
}

// Artifact describes one written export file.
type Artifact struct {
	Format      Format `json:"format"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Fingerprint string `json:"fingerprint"`
}

// Exporter writes reports in every supported format.
type Exporter struct {
	// Capturer renders the graph snapshot for PDFs; nil skips the image.
	Capturer GraphCapturer
	Log      *zap.SugaredLogger
	Version  string
	// Now dates the artifact file names; defaults to time.Now.
	Now func() time.Time
}

func (e *Exporter) log() *zap.SugaredLogger {
	if e.Log == nil {
		return zap.NewNop().Sugar()
	}
	return e.Log
}

func (e *Exporter) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// graph captures the report's graph. Failures are logged and yield nil so the
// rest of the document still renders.
func (e *Exporter) graph(ctx context.Context, r types.Report) *Image {
	if e.Capturer == nil || r.GraphData == nil {
		return nil
	}
	png, err := e.Capturer.Capture(ctx, r.GraphData)
	if err != nil {
		e.log().Warnw("graph capture failed, exporting without snapshot", "error", err)
		return nil
	}
	img, err := DecodeImage("graph", png)
	if err != nil {
		e.log().Warnw("graph capture unusable, exporting without snapshot", "error", err)
		return nil
	}
	return img
}

// WritePDF lays out and renders r.
func (e *Exporter) WritePDF(ctx context.Context, w io.Writer, r types.Report) error {
	doc := Layout(r, LayoutOptions{Graph: e.graph(ctx, r)})
	e.log().Debugw("pdf laid out", "pages", len(doc.Pages), "findings", len(r.Findings))
	return RenderPDF(w, doc, r.Timestamp)
}

// Write serializes r in format f.
func (e *Exporter) Write(ctx context.Context, w io.Writer, r types.Report, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatPDF:
		return e.WritePDF(ctx, w, r)
	case FormatSARIF:
		return report.WriteSARIF(w, r, e.Version)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Export writes r to dir once per format, concurrently, and returns the
// artifacts in the order of formats. Every format is staged in a temporary
// file first; the final names only appear once all formats succeeded.
func (e *Exporter) Export(ctx context.Context, r types.Report, formats []Format, dir string) ([]Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	day := e.now()
	out := make([]Artifact, len(formats))
	staged := make([]string, len(formats))
	cleanup := func() {
		for _, tmp := range staged {
			if tmp != "" {
				os.Remove(tmp)
			}
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		g.Go(func() error {
			var buf bytes.Buffer
			if err := e.Write(gctx, &buf, r, f); err != nil {
				return fmt.Errorf("export %s: %w", f, err)
			}
			name := FileName(string(f), day)
			tmp, err := stage(dir, name, buf.Bytes())
			if err != nil {
				return fmt.Errorf("export %s: %w", f, err)
			}
			staged[i] = tmp
			out[i] = Artifact{
				Format:      f,
				Path:        filepath.Join(dir, name),
				Size:        int64(buf.Len()),
				Fingerprint: fmt.Sprintf("%016x", xxhash.Sum64(buf.Bytes())),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cleanup()
		return nil, err
	}
	for i, a := range out {
		if err := os.Rename(staged[i], a.Path); err != nil {
			cleanup()
			return nil, fmt.Errorf("export %s: %w", a.Format, err)
		}
		staged[i] = ""
		e.log().Infow("report exported", "format", a.Format, "path", a.Path, "bytes", a.Size)
	}
	return out, nil
}

// stage writes b to a hidden temporary file next to name and returns its path.
func stage(dir, name string, b []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
