package cache

import (
	"time"

	"github.com/secai/secai/internal/types"
)

const (
	investigationFile = "investigation.json"
	remediationFile   = "remediation.json"
	reportFile        = "last_report.json"
)

// Investigation is the offline investigation state.
type Investigation struct {
	Breach    string      `json:"breach"`
	Tree      *types.Node `json:"tree"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Remediation is the offline remediation state.
type Remediation struct {
	TreePath     string                         `json:"tree_path"`
	DocPath      string                         `json:"documentation_path,omitempty"`
	Board        []types.BoardNode              `json:"board"`
	Perspectives map[string]*types.Perspectives `json:"perspectives"`
	Notes        map[string][]string            `json:"notes"`
	UpdatedAt    time.Time                      `json:"updated_at"`
}

// SaveInvestigation persists the offline investigation.
func (s *Store) SaveInvestigation(st Investigation) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	return s.Save(investigationFile, st)
}

// LoadInvestigation loads the offline investigation.
func (s *Store) LoadInvestigation() (Investigation, error) {
	var st Investigation
	err := s.Load(investigationFile, &st)
	return st, err
}

// SaveRemediation persists the offline remediation board.
func (s *Store) SaveRemediation(st Remediation) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	return s.Save(remediationFile, st)
}

// LoadRemediation loads the offline remediation board.
func (s *Store) LoadRemediation() (Remediation, error) {
	var st Remediation
	err := s.Load(remediationFile, &st)
	return st, err
}

// SaveReport stores the last built report so `report show` and `export`
// can run without rebuilding it.
func (s *Store) SaveReport(r types.Report) error {
	return s.Save(reportFile, r)
}

// LoadReport loads the last built report.
func (s *Store) LoadReport() (types.Report, error) {
	var r types.Report
	err := s.Load(reportFile, &r)
	return r, err
}
