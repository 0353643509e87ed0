package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *types.Node {
	return &types.Node{
		ID: "root", Title: "Ransomware on file server", Type: types.NodeRoot, Status: types.StatusUnverified,
		Metadata: types.MetadataOf("reported_by", "helpdesk"),
		Children: []*types.Node{
			{
				ID: "h1", Title: "RDP brute force", Description: "Exposed RDP with weak passwords.",
				Type: types.NodeHypothesis, Status: types.StatusPlausible, Confidence: 0.7, Locked: true,
				Metadata: types.MetadataOf("reasoning", "4625 events spike"),
				Evidence: []string{"security.evtx"},
				Children: []*types.Node{
					{ID: "h1a", Title: "Reused admin password", Type: types.NodeHypothesis,
						Status: types.StatusConfirmed, Confidence: 0.9},
				},
			},
			{ID: "h2", Title: "Malicious macro", Type: types.NodeHypothesis, Status: types.StatusImplausible,
				Confidence: 0.2, Locked: true, Children: []*types.Node{}},
			{ID: "h3", Title: "Supply chain", Type: types.NodeHypothesis, Status: types.StatusUnverified, Confidence: 0.4},
		},
	}
}

func sampleReport() types.Report {
	return report.Build(sampleTree(), report.Narrative{
		Summary:         "The attacker gained access over RDP.",
		Recommendations: []string{"Disable internet-facing RDP", "Rotate local admin passwords"},
	}, time.Date(2024, 3, 9, 14, 30, 5, 123456789, time.UTC))
}

func TestJSON_RoundTrip(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	got, err := ParseJSON(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if diff := cmp.Diff(r, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestJSON_FieldsAndIndent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "{\n  \"title\": "), out)
	last := -1
	for _, field := range []string{`"title"`, `"timestamp"`, `"summary"`, `"findings"`, `"recommendations"`, `"graph_data"`} {
		i := strings.Index(out, field)
		require.GreaterOrEqual(t, i, 0, field)
		assert.Greater(t, i, last, "field %s out of order", field)
		last = i
	}
	assert.Contains(t, out, `"timestamp": "2024-03-09T14:30:05.123456789Z"`)
}

func TestJSON_MetadataOrder(t *testing.T) {
	var r types.Report
	require.NoError(t, json.Unmarshal([]byte(`{"graph_data":{"id":"root","metadata":{"reasoning":"r","attack_vector":"smb","cve":"x"}}}`), &r))
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))
	out := buf.String()

	last := -1
	for _, key := range []string{`"reasoning"`, `"attack_vector"`, `"cve"`} {
		i := strings.Index(out, key)
		require.GreaterOrEqual(t, i, 0, key)
		assert.Greater(t, i, last, "metadata key %s reordered", key)
		last = i
	}

	got, err := ParseJSON(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"reasoning", "attack_vector", "cve"}, got.GraphData.Metadata.Keys())
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := ParseJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	day := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "investigation-report-2024-03-09.json", FileName("json", day))
	assert.Equal(t, "investigation-report-2024-03-09.pdf", FileName("pdf", day))
}

func TestParseFormats(t *testing.T) {
	fs, err := ParseFormats("json, PDF,json")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatJSON, FormatPDF}, fs)

	_, err = ParseFormats("docx")
	assert.Error(t, err)
	_, err = ParseFormats(" , ")
	assert.Error(t, err)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeCapturer struct {
	png []byte
	err error
	n   int
}

func (f *fakeCapturer) Capture(context.Context, *types.Node) ([]byte, error) {
	f.n++
	return f.png, f.err
}

func TestRenderPDF(t *testing.T) {
	img, err := DecodeImage("graph", pngBytes(t, 400, 200))
	require.NoError(t, err)
	doc := Layout(sampleReport(), LayoutOptions{Graph: img})

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, doc, sampleReport().Timestamp))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestExporter_CaptureFailureIsSwallowed(t *testing.T) {
	capt := &fakeCapturer{err: errors.New("chrome not found")}
	e := &Exporter{Capturer: capt}

	var buf bytes.Buffer
	require.NoError(t, e.WritePDF(context.Background(), &buf, sampleReport()))
	assert.Equal(t, 1, capt.n)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Nil(t, e.graph(context.Background(), sampleReport()))

	// garbage bytes are treated the same way
	e.Capturer = &fakeCapturer{png: []byte("not a png")}
	assert.Nil(t, e.graph(context.Background(), sampleReport()))
}

func TestExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := &Exporter{
		Capturer: &fakeCapturer{png: pngBytes(t, 300, 300)},
		Version:  "test",
		Now:      func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) },
	}
	arts, err := e.Export(context.Background(), sampleReport(), Formats, dir)
	require.NoError(t, err)
	require.Len(t, arts, 3)

	for i, f := range Formats {
		a := arts[i]
		assert.Equal(t, f, a.Format)
		assert.Equal(t, filepath.Join(dir, "investigation-report-2024-03-10."+string(f)), a.Path)
		st, err := os.Stat(a.Path)
		require.NoError(t, err)
		assert.Equal(t, st.Size(), a.Size)
		assert.Len(t, a.Fingerprint, 16)
	}

	f, err := os.Open(arts[0].Path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ParseJSON(f)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(sampleReport(), got))
}

func TestExporter_ExportFailureLeavesNoFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := &Exporter{Now: func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }}

	_, err := e.Export(context.Background(), sampleReport(), []Format{FormatJSON, FormatSARIF, Format("docx")}, dir)
	require.ErrorContains(t, err, "docx")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	arts, err := e.Export(context.Background(), sampleReport(), []Format{FormatJSON}, dir)
	require.NoError(t, err)
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(arts[0].Path), entries[0].Name())
}
