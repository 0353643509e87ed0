package export

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/secai/secai/internal/types"
)

// Page geometry in millimetres (A4 portrait).
const (
	PageWidth    = 210.0
	PageHeight   = 297.0
	Margin       = 20.0
	ContentWidth = PageWidth - 2*Margin
	TopY         = 20.0
	// BreakY is the lowest cursor position content may reach.
	BreakY = 280.0
	// HeaderBreakY is the earlier limit for the findings and recommendations
	// headings so they are not orphaned at the bottom of a page.
	HeaderBreakY = 250.0
	UsableHeight = BreakY - TopY
)

// Font sizes in points.
const (
	SizeTitle   = 18.0
	SizeHeading = 14.0
	SizeFinding = 12.0
	SizeBody    = 10.0
)

const (
	charWidthFactor  = 0.18
	lineHeightFactor = 0.5
	headingGap       = 3.0
	blockGap         = 5.0
	bulletGap        = 3.0
	sectionGap       = 10.0
)

// Section tags each drawing op with the part of the report it belongs to.
type Section int

const (
	SectionTitle Section = iota
	SectionSummary
	SectionGraph
	SectionFindings
	SectionRecommendations
)

// OpKind is the kind of drawing instruction.
type OpKind int

const (
	OpText OpKind = iota
	OpImage
)

// Op is one drawing instruction. Text ops occupy [Y, Y+LineHeight(Size)).
type Op struct {
	Kind    OpKind
	Section Section
	// Block is the finding or recommendation index, -1 elsewhere.
	Block int
	X, Y  float64
	W, H  float64
	Size  float64
	Style string
	Text  string
	Image string
}

// Page is the ordered list of ops drawn on one page.
type Page struct {
	Ops []Op
}

// Image is a raster embedded in the document. Width and Height are pixels.
type Image struct {
	Name   string
	Data   []byte
	Width  int
	Height int
}

// Document is the laid-out report, ready for a renderer.
type Document struct {
	Title  string
	Pages  []Page
	Images []Image
}

// LayoutOptions carries the inputs that are not part of the report itself.
type LayoutOptions struct {
	// Graph is the rendered snapshot of GraphData, nil when capture failed
	// or was disabled.
	Graph *Image
}

// CharsPerLine estimates how many characters of the given font size fit in
// the content width.
func CharsPerLine(size float64) int {
	n := int(math.Floor(ContentWidth / (size * charWidthFactor)))
	if n < 1 {
		return 1
	}
	return n
}

// LineHeight is the vertical advance of one line at the given font size.
func LineHeight(size float64) float64 {
	return size * lineHeightFactor
}

// Wrap breaks text into lines of at most CharsPerLine(size) runes. Explicit
// newlines are kept and words longer than a line are split.
func Wrap(text string, size float64) []string {
	limit := CharsPerLine(size)
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := ""
		for _, w := range words {
			for utf8.RuneCountInString(w) > limit {
				if cur != "" {
					lines = append(lines, cur)
					cur = ""
				}
				r := []rune(w)
				lines = append(lines, string(r[:limit]))
				w = string(r[limit:])
			}
			switch {
			case cur == "":
				cur = w
			case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(w) <= limit:
				cur += " " + w
			default:
				lines = append(lines, cur)
				cur = w
			}
		}
		if cur != "" {
			lines = append(lines, cur)
		}
	}
	return lines
}

// textRun is a run of wrapped lines sharing a font.
type textRun struct {
	size  float64
	style string
	lines []string
}

func (r textRun) height() float64 {
	return float64(len(r.lines)) * LineHeight(r.size)
}

// block is a unit that is kept on one page when possible.
type block struct {
	runs []textRun
	gap  float64
}

// body is the height of the block's lines alone.
func (b block) body() float64 {
	h := 0.0
	for _, r := range b.runs {
		h += r.height()
	}
	return h
}

func (b block) height() float64 {
	return b.body() + b.gap
}

func findingBlock(f types.Finding) block {
	return block{
		runs: []textRun{
			{size: SizeFinding, style: "B", lines: Wrap(f.Title, SizeFinding)},
			{size: SizeBody, lines: Wrap(f.Description, SizeBody)},
			{size: SizeBody, style: "I", lines: []string{
				fmt.Sprintf("Status: %s | Confidence: %s", f.Status, f.ConfidencePct()),
			}},
		},
		gap: blockGap,
	}
}

func recommendationBlock(rec string) block {
	return block{
		runs: []textRun{{size: SizeBody, lines: Wrap("• "+rec, SizeBody)}},
		gap:  bulletGap,
	}
}

// FindingHeight is the measured height of a finding block, trailing gap included.
func FindingHeight(f types.Finding) float64 {
	return findingBlock(f).height()
}

type layouter struct {
	doc     Document
	y       float64
	section Section
	block   int
}

func (l *layouter) newPage() {
	l.doc.Pages = append(l.doc.Pages, Page{})
	l.y = TopY
}

func (l *layouter) emit(op Op) {
	op.Section = l.section
	op.Block = l.block
	p := &l.doc.Pages[len(l.doc.Pages)-1]
	p.Ops = append(p.Ops, op)
}

// line places one line, moving to a new page first if the line would cross
// BreakY. Lines are never split.
func (l *layouter) line(text string, size float64, style string) {
	lh := LineHeight(size)
	if l.y+lh > BreakY && l.y > TopY {
		l.newPage()
	}
	l.emit(Op{Kind: OpText, X: Margin, Y: l.y, Size: size, Style: style, Text: text})
	l.y += lh
}

func (l *layouter) run(r textRun) {
	for _, s := range r.lines {
		l.line(s, r.size, r.style)
	}
}

// heading places a section heading; limit is the cursor position past which
// the heading starts a new page.
func (l *layouter) heading(text string, limit float64) {
	if l.y+LineHeight(SizeHeading) > limit && l.y > TopY {
		l.newPage()
	}
	l.line(text, SizeHeading, "B")
	l.y += headingGap
}

func (l *layouter) blocks(bs []block) {
	for i, b := range bs {
		l.block = i
		last := i == len(bs)-1
		// the trailing gap may fall past BreakY
		if l.y+b.body() > BreakY && !last && l.y > TopY {
			l.newPage()
		}
		for _, r := range b.runs {
			l.run(r)
		}
		l.y += b.gap
	}
	l.block = -1
}

func (l *layouter) image(img *Image) {
	w := ContentWidth
	h := w * float64(img.Height) / float64(img.Width)
	if h > UsableHeight {
		// taller than a page: fit the height and narrow the width
		w = w * UsableHeight / h
		h = UsableHeight
	}
	if l.y+h > BreakY && l.y > TopY {
		l.newPage()
	}
	l.emit(Op{Kind: OpImage, X: Margin + (ContentWidth-w)/2, Y: l.y, W: w, H: h, Image: img.Name})
	l.doc.Images = append(l.doc.Images, *img)
	l.y += h
}

// Layout paginates r onto A4 pages. It is deterministic: the same report and
// options always give the same document.
func Layout(r types.Report, opts LayoutOptions) Document {
	l := &layouter{doc: Document{Title: r.Title}, block: -1}
	l.newPage()

	l.section = SectionTitle
	l.run(textRun{size: SizeTitle, style: "B", lines: Wrap(r.Title, SizeTitle)})
	l.line("Generated: "+r.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"), SizeBody, "")
	l.y += sectionGap

	l.section = SectionSummary
	l.heading("Summary", BreakY)
	l.run(textRun{size: SizeBody, lines: Wrap(r.Summary, SizeBody)})
	l.y += sectionGap

	if r.GraphData != nil {
		l.section = SectionGraph
		l.heading("Investigation Graph", BreakY)
		if g := opts.Graph; g != nil && g.Width > 0 && g.Height > 0 {
			l.image(g)
		} else {
			l.line("Graph snapshot unavailable.", SizeBody, "I")
		}
		l.y += sectionGap
	}

	l.section = SectionFindings
	l.heading("Key Findings", HeaderBreakY)
	fb := make([]block, len(r.Findings))
	for i, f := range r.Findings {
		fb[i] = findingBlock(f)
	}
	l.blocks(fb)
	l.y += sectionGap - blockGap

	l.section = SectionRecommendations
	l.heading("Recommendations", HeaderBreakY)
	rb := make([]block, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		rb[i] = recommendationBlock(rec)
	}
	l.blocks(rb)

	return l.doc
}
