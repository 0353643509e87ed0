package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Prefs holds user preferences for the TUI that persist across sessions.
type Prefs struct {
	// ShowJSON appends a highlighted JSON preview of the node to the detail pane.
	ShowJSON bool `json:"show_json"`
	// HideImplausible prunes implausible branches from the tree view.
	HideImplausible bool `json:"hide_implausible"`
}

// DefaultPrefs returns the default preferences.
func DefaultPrefs() Prefs {
	return Prefs{}
}

func prefsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".secai", "tui_prefs.json"), nil
}

// LoadPrefs loads user preferences from disk, returning defaults if not found.
func LoadPrefs() Prefs {
	prefs := DefaultPrefs()

	path, err := prefsPath()
	if err != nil {
		return prefs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return prefs
	}
	_ = json.Unmarshal(data, &prefs) //nolint:errcheck // fall back to defaults
	return prefs
}

// SavePrefs persists user preferences to disk.
func SavePrefs(prefs Prefs) error {
	path, err := prefsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
