// Package export turns reports into shareable artifacts: pretty JSON, a
// paginated PDF and SARIF.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/secai/secai/internal/types"
)

// FilePrefix is the base name of every exported artifact.
const FilePrefix = "investigation-report"

// FileName returns the artifact name for ext on the day of t, e.g.
// investigation-report-2024-03-09.pdf.
func FileName(ext string, t time.Time) string {
	return fmt.Sprintf("%s-%s.%s", FilePrefix, t.Format("2006-01-02"), ext)
}

// WriteJSON writes r as indented JSON with the stored field names and order.
func WriteJSON(w io.Writer, r types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// ParseJSON decodes a report previously written by WriteJSON.
func ParseJSON(r io.Reader) (types.Report, error) {
	var rep types.Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return rep, fmt.Errorf("decode report: %w", err)
	}
	return rep, nil
}
