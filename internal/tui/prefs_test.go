package tui

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPrefs(t *testing.T) {
	prefs := DefaultPrefs()
	if prefs.ShowJSON || prefs.HideImplausible {
		t.Errorf("DefaultPrefs() = %+v, want all off", prefs)
	}
}

func TestLoadPrefs_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if got := LoadPrefs(); got != DefaultPrefs() {
		t.Errorf("LoadPrefs() with no file = %+v, want defaults", got)
	}
}

func TestSaveAndLoadPrefs(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	prefs := Prefs{ShowJSON: true}
	if err := SavePrefs(prefs); err != nil {
		t.Fatalf("SavePrefs() error: %v", err)
	}

	path := filepath.Join(tmpDir, ".secai", "tui_prefs.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("prefs file not created at %s", path)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("prefs file mode = %v, want 0600", info.Mode().Perm())
	}

	if got := LoadPrefs(); got != prefs {
		t.Errorf("LoadPrefs() = %+v, want %+v", got, prefs)
	}
}

func TestLoadPrefs_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	dir := filepath.Join(tmpDir, ".secai")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tui_prefs.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := LoadPrefs(); got != DefaultPrefs() {
		t.Errorf("LoadPrefs() with corrupt file = %+v, want defaults", got)
	}
}
