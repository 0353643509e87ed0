package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

const fontFamily = "Helvetica"

// RenderPDF draws a laid-out document. created stamps the PDF metadata so
// identical reports produce identical files.
func RenderPDF(w io.Writer, doc Document, created time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(Margin, TopY, Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("secai", true)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, img := range doc.Images {
		pdf.RegisterImageOptionsReader(img.Name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(img.Data))
	}
	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, op := range page.Ops {
			switch op.Kind {
			case OpText:
				pdf.SetFont(fontFamily, op.Style, op.Size)
				// Text positions the baseline; ops are addressed by their top edge.
				pdf.Text(op.X, op.Y+LineHeight(op.Size)*0.75, tr(op.Text))
			case OpImage:
				pdf.ImageOptions(op.Image, op.X, op.Y, op.W, op.H, false,
					fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			}
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
