package core

import (
	"io"

	"github.com/secai/secai/internal/export"
)

// MarshalReport writes r in the report export format.
func MarshalReport(w io.Writer, r Report) error { return export.WriteJSON(w, r) }

// UnmarshalReport decodes a report export, useful for ingestion tests.
func UnmarshalReport(r io.Reader) (Report, error) { return export.ParseJSON(r) }
