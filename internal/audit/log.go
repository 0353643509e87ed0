// Package audit keeps an append-only history of report exports.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/types"
)

// ExportRecord is one line of the history file.
type ExportRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	ExportID     string            `json:"export_id"`
	Title        string            `json:"title"`
	ReportTime   time.Time         `json:"report_time"`
	Findings     int               `json:"findings"`
	StatusCounts map[string]int    `json:"status_counts"`
	Artifacts    []export.Artifact `json:"artifacts"`
	// Report is kept so later exports can be diffed against it.
	Report *types.Report `json:"report,omitempty"`
}

// AuditLog is a JSON-lines file of export records.
type AuditLog struct {
	logPath string
}

// NewAuditLog returns the log stored in dir.
func NewAuditLog(dir string) *AuditLog {
	return &AuditLog{logPath: filepath.Join(dir, "exports.jsonl")}
}

// Path returns the history file location.
func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns records newest first. Lines that fail to decode are
// skipped. A missing file yields an empty history.
func (a *AuditLog) LoadHistory() ([]ExportRecord, error) {
	f, err := os.Open(a.logPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []ExportRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ExportRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// LogExport appends record, assigning an id when it has none.
func (a *AuditLog) LogExport(record ExportRecord) error {
	if record.ExportID == "" {
		record.ExportID = uuid.NewString()
	}
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}
	// Restrict permissions to owner-only; records carry the full report.
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record at index, counted newest first.
func (a *AuditLog) DeleteRecord(index int) error {
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}
	records = append(records[:index], records[index+1:]...)

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	return nil
}

// Find returns the record whose id starts with prefix.
func (a *AuditLog) Find(prefix string) (ExportRecord, error) {
	records, err := a.LoadHistory()
	if err != nil {
		return ExportRecord{}, err
	}
	var match *ExportRecord
	for i := range records {
		if len(prefix) > 0 && len(records[i].ExportID) >= len(prefix) && records[i].ExportID[:len(prefix)] == prefix {
			if match != nil {
				return ExportRecord{}, fmt.Errorf("export id %q is ambiguous", prefix)
			}
			match = &records[i]
		}
	}
	if match == nil {
		return ExportRecord{}, fmt.Errorf("no export with id %q", prefix)
	}
	return *match, nil
}

// Filter keeps records with at least one artifact path matching the
// doublestar pattern. An empty pattern keeps everything.
func Filter(records []ExportRecord, pattern string) ([]ExportRecord, error) {
	if pattern == "" {
		return records, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	var out []ExportRecord
	for _, r := range records {
		for _, art := range r.Artifacts {
			if ok, _ := doublestar.PathMatch(pattern, art.Path); ok {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// CreateExportRecord summarizes an export of r.
func CreateExportRecord(r types.Report, artifacts []export.Artifact) ExportRecord {
	counts := make(map[string]int)
	for s, n := range report.Counts(r.Findings) {
		counts[string(s)] = n
	}
	snapshot := r
	return ExportRecord{
		Timestamp:    time.Now().UTC(),
		Title:        r.Title,
		ReportTime:   r.Timestamp,
		Findings:     len(r.Findings),
		StatusCounts: counts,
		Artifacts:    artifacts,
		Report:       &snapshot,
	}
}
