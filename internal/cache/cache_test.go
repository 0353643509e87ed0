package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/secai/secai/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	var v map[string]int
	err := s.Load("counts.json", &v)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("counts.json", map[string]int{"a": 1}))
	st, err := os.Stat(filepath.Join(dir, ".secai", "counts.json"))
	require.NoError(t, err)
	assert.False(t, st.IsDir())

	require.NoError(t, s.Load("counts.json", &v))
	assert.Equal(t, 1, v["a"])

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")

	require.NoError(t, s.Remove("counts.json"))
	require.NoError(t, s.Remove("counts.json"))
}

func TestLoad_Corrupt(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.MkdirAll(s.Dir(), 0o700))
	require.NoError(t, os.WriteFile(s.Path(reportFile), []byte("{"), 0o600))
	_, err := s.LoadReport()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestInvestigationState(t *testing.T) {
	s := New(t.TempDir())
	in := Investigation{
		Breach: "VPN creds sold",
		Tree: &types.Node{ID: "root", Type: types.NodeRoot, Status: types.StatusUnverified,
			Children: []*types.Node{{ID: "h1", Type: types.NodeHypothesis, Status: types.StatusImplausible, Locked: true}}},
	}
	require.NoError(t, s.SaveInvestigation(in))
	got, err := s.LoadInvestigation()
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.IsZero())
	assert.Empty(t, cmp.Diff(in.Tree, got.Tree))
}

func TestReport(t *testing.T) {
	s := New(t.TempDir())
	r := types.Report{
		Title:     "Weekly",
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
		Findings:  []types.Finding{{Title: "t", Status: types.StatusConfirmed, Confidence: 0.8}},
	}
	require.NoError(t, s.SaveReport(r))
	got, err := s.LoadReport()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(r, got))
}
