package export

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/secai/secai/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("lorem ", n))
}

// finding with a one-line title and a description of descLines lines.
func finding(descLines int) types.Finding {
	// 15 five-letter words fill one 94 character body line
	n := 15*(descLines-1) + 5
	if descLines == 0 {
		n = 0
	}
	return types.Finding{
		Title:       "Lateral movement via SMB",
		Description: words(n),
		Status:      types.StatusPlausible,
		Confidence:  0.6,
	}
}

func TestMeasurement(t *testing.T) {
	assert.Equal(t, 94, CharsPerLine(SizeBody))
	assert.Equal(t, 78, CharsPerLine(SizeFinding))
	assert.Equal(t, 52, CharsPerLine(SizeTitle))
	assert.Equal(t, 5.0, LineHeight(SizeBody))
	assert.Equal(t, 9.0, LineHeight(SizeTitle))

	assert.Len(t, Wrap(words(15), SizeBody), 1)
	assert.Len(t, Wrap(words(16), SizeBody), 2)
	assert.Equal(t, 26.0, FindingHeight(finding(2)))
	assert.Equal(t, 36.0, FindingHeight(finding(4)))
}

func TestWrap(t *testing.T) {
	lines := Wrap("first paragraph\n\nsecond", SizeBody)
	assert.Equal(t, []string{"first paragraph", "", "second"}, lines)

	long := strings.Repeat("x", 200)
	lines = Wrap("pre "+long+" post", SizeBody)
	assert.Equal(t, []string{"pre", strings.Repeat("x", 94), strings.Repeat("x", 94), strings.Repeat("x", 12) + " post"}, lines)

	for _, l := range Wrap(words(300), SizeFinding) {
		assert.LessOrEqual(t, len([]rune(l)), CharsPerLine(SizeFinding))
	}
}

// pagesOf returns the page index of each op that belongs to block b.
func pagesOf(doc Document, section Section, b int) []int {
	var pages []int
	for p, page := range doc.Pages {
		for _, op := range page.Ops {
			if op.Section == section && op.Block == b {
				pages = append(pages, p)
			}
		}
	}
	return pages
}

func layoutFindings(fs []types.Finding) Document {
	l := &layouter{block: -1}
	l.newPage()
	l.section = SectionFindings
	bs := make([]block, len(fs))
	for i, f := range fs {
		bs[i] = findingBlock(f)
	}
	l.blocks(bs)
	return l.doc
}

func TestFindingPagination_PageCount(t *testing.T) {
	for _, n := range []int{10, 11, 20, 25, 31} {
		fs := make([]types.Finding, n)
		total := 0.0
		for i := range fs {
			fs[i] = finding(2)
			total += FindingHeight(fs[i])
		}
		doc := layoutFindings(fs)
		want := int(math.Ceil(total / UsableHeight))
		assert.Equal(t, want, len(doc.Pages), "n=%d total=%v", n, total)

		for i := range fs {
			pages := pagesOf(doc, SectionFindings, i)
			require.NotEmpty(t, pages)
			for _, p := range pages {
				assert.Equal(t, pages[0], p, "finding %d split across pages", i)
			}
		}
	}
}

func TestFindingPagination_LastFindingNotForced(t *testing.T) {
	fs := make([]types.Finding, 10)
	for i := 0; i < 9; i++ {
		fs[i] = finding(2)
	}
	fs[9] = finding(4)
	// 9*26 leaves the cursor at 254; the 36 tall last block starts there
	doc := layoutFindings(fs)
	require.Len(t, doc.Pages, 2)
	pages := pagesOf(doc, SectionFindings, 9)
	assert.Equal(t, 0, pages[0], "last finding starts on the current page")
	assert.Equal(t, 1, pages[len(pages)-1], "its overflow lines move to the next page")

	// the same block in a non-final position is moved whole
	fs = append(fs, finding(2))
	doc = layoutFindings(fs)
	for _, p := range pagesOf(doc, SectionFindings, 9) {
		assert.Equal(t, 1, p)
	}
}

func TestFindingPagination_GapNotCounted(t *testing.T) {
	fs := []types.Finding{finding(2), finding(2)}
	l := &layouter{block: -1}
	l.newPage()
	l.section = SectionFindings
	// the first block's lines end exactly at BreakY; only its gap overflows
	l.y = BreakY - (FindingHeight(fs[0]) - blockGap)
	l.blocks([]block{findingBlock(fs[0]), findingBlock(fs[1])})

	require.Len(t, l.doc.Pages, 2)
	for _, p := range pagesOf(l.doc, SectionFindings, 0) {
		assert.Equal(t, 0, p)
	}
	for _, p := range pagesOf(l.doc, SectionFindings, 1) {
		assert.Equal(t, 1, p)
	}
	assertWithinBounds(t, l.doc)
}

func assertWithinBounds(t *testing.T, doc Document) {
	t.Helper()
	for p, page := range doc.Pages {
		for _, op := range page.Ops {
			assert.GreaterOrEqual(t, op.Y, TopY, "page %d op %q above top", p, op.Text)
			switch op.Kind {
			case OpText:
				assert.LessOrEqual(t, op.Y+LineHeight(op.Size), BreakY, "page %d line %q crosses break", p, op.Text)
				assert.LessOrEqual(t, len([]rune(op.Text)), CharsPerLine(op.Size))
			case OpImage:
				assert.LessOrEqual(t, op.Y+op.H, BreakY)
				assert.LessOrEqual(t, op.X+op.W, Margin+ContentWidth+1e-9)
			}
		}
	}
}

func longReport(findings, recs int) types.Report {
	r := types.Report{
		Title:     "Incident 2024-17: credential stuffing against the customer portal",
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Summary:   words(120),
		GraphData: &types.Node{ID: "root", Type: types.NodeRoot, Status: types.StatusUnverified},
	}
	for i := 0; i < findings; i++ {
		r.Findings = append(r.Findings, finding(1+i%4))
	}
	for i := 0; i < recs; i++ {
		r.Recommendations = append(r.Recommendations, words(5+i*7))
	}
	return r
}

func TestLayout_Order(t *testing.T) {
	doc := Layout(longReport(2, 1), LayoutOptions{})
	require.NotEmpty(t, doc.Pages)
	ops := doc.Pages[0].Ops

	assert.Equal(t, TopY, ops[0].Y, "cursor starts at the top margin")
	assert.Equal(t, SizeTitle, ops[0].Size)
	assert.Equal(t, SectionTitle, ops[0].Section)
	assert.Equal(t, "Generated: 2024-06-01 12:00:00 UTC", ops[2].Text)

	var headings []string
	for _, p := range doc.Pages {
		for _, op := range p.Ops {
			if op.Size == SizeHeading {
				headings = append(headings, op.Text)
			}
		}
	}
	assert.Equal(t, []string{"Summary", "Investigation Graph", "Key Findings", "Recommendations"}, headings)
	assertWithinBounds(t, doc)
}

func TestLayout_NoGraphSection(t *testing.T) {
	r := longReport(1, 1)
	r.GraphData = nil
	doc := Layout(r, LayoutOptions{})
	for _, p := range doc.Pages {
		for _, op := range p.Ops {
			assert.NotEqual(t, SectionGraph, op.Section)
		}
	}
}

func TestLayout_HeadersBreakEarly(t *testing.T) {
	for n := 0; n < 40; n++ {
		doc := Layout(longReport(n, 3), LayoutOptions{})
		assertWithinBounds(t, doc)
		for _, p := range doc.Pages {
			for _, op := range p.Ops {
				if op.Text == "Key Findings" || op.Text == "Recommendations" {
					assert.LessOrEqual(t, op.Y+LineHeight(SizeHeading), HeaderBreakY, "n=%d %s", n, op.Text)
				}
			}
		}
	}
}

func TestLayout_Image(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH float64
	}{
		{"landscape", 1000, 500, 170, 85},
		{"square", 400, 400, 170, 170},
		{"taller than a page", 100, 1000, 26, 260},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := &Image{Name: "graph", Width: tt.w, Height: tt.h}
			doc := Layout(longReport(3, 1), LayoutOptions{Graph: img})
			var found *Op
			page := -1
			for p := range doc.Pages {
				for i := range doc.Pages[p].Ops {
					if doc.Pages[p].Ops[i].Kind == OpImage {
						found = &doc.Pages[p].Ops[i]
						page = p
					}
				}
			}
			require.NotNil(t, found)
			assert.InDelta(t, tt.wantW, found.W, 1e-9)
			assert.InDelta(t, tt.wantH, found.H, 1e-9)
			require.Len(t, doc.Images, 1)
			assertWithinBounds(t, doc)
			if tt.wantH > 170 {
				// does not fit under the summary, so it opens a new page
				assert.Equal(t, 1, page)
				assert.Equal(t, TopY, found.Y)
			}
		})
	}
}

func TestLayout_GraphUnavailable(t *testing.T) {
	doc := Layout(longReport(1, 1), LayoutOptions{})
	var texts []string
	for _, op := range doc.Pages[0].Ops {
		if op.Section == SectionGraph {
			texts = append(texts, op.Text)
		}
	}
	assert.Equal(t, []string{"Investigation Graph", "Graph snapshot unavailable."}, texts)
	assert.Empty(t, doc.Images)
}

func TestLayout_Deterministic(t *testing.T) {
	r := longReport(17, 4)
	assert.Equal(t, Layout(r, LayoutOptions{}), Layout(r, LayoutOptions{}))
}
