package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for secai.
type FileConfig struct {
	InvestigationURL *string `yaml:"investigation_url"`
	RemediationURL   *string `yaml:"remediation_url"`
	Timeout          *string `yaml:"timeout"`
	ExpandCount      *int    `yaml:"expand_count"`
	OutputDir        *string `yaml:"output_dir"`
	LogLevel         *string `yaml:"log_level"`
	NoColor          *bool   `yaml:"no_color"`
	Offline          *bool   `yaml:"offline"`
	ReportTitle      *string `yaml:"report_title"`
	RedactExports    *bool   `yaml:"redact_exports"`

	// Graph snapshot config for PDF exports
	CaptureGraph *bool   `yaml:"capture_graph"`
	ChromePath   *string `yaml:"chrome_path"`
}

// LocalNames lists repo-local config file names in search order.
var LocalNames = []string{".secai.yml", ".secai.yaml", "secai.yml", "secai.yaml"}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadLocal searches for a workspace config file in the given root.
func LoadLocal(root string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range LocalNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// GlobalPath returns the global config location under the XDG base directory
// or ~/.config.
func GlobalPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return "", errors.New("no config dir")
	}
	return filepath.Join(base, "secai", "config.yml"), nil
}

// LoadGlobal loads the global config file.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	p, err := GlobalPath()
	if err != nil {
		return cfg, err
	}
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// Merge overlays the set fields of over onto fc.
func (fc FileConfig) Merge(over FileConfig) FileConfig {
	out := fc
	if over.InvestigationURL != nil {
		out.InvestigationURL = over.InvestigationURL
	}
	if over.RemediationURL != nil {
		out.RemediationURL = over.RemediationURL
	}
	if over.Timeout != nil {
		out.Timeout = over.Timeout
	}
	if over.ExpandCount != nil {
		out.ExpandCount = over.ExpandCount
	}
	if over.OutputDir != nil {
		out.OutputDir = over.OutputDir
	}
	if over.LogLevel != nil {
		out.LogLevel = over.LogLevel
	}
	if over.NoColor != nil {
		out.NoColor = over.NoColor
	}
	if over.Offline != nil {
		out.Offline = over.Offline
	}
	if over.ReportTitle != nil {
		out.ReportTitle = over.ReportTitle
	}
	if over.RedactExports != nil {
		out.RedactExports = over.RedactExports
	}
	if over.CaptureGraph != nil {
		out.CaptureGraph = over.CaptureGraph
	}
	if over.ChromePath != nil {
		out.ChromePath = over.ChromePath
	}
	return out
}

// Load merges the global config with the local one found in root. Missing
// files are not an error; malformed ones are.
func Load(root string) (FileConfig, error) {
	var cfg FileConfig
	if p, err := GlobalPath(); err == nil {
		if _, statErr := os.Stat(p); statErr == nil {
			g, err := LoadFile(p)
			if err != nil {
				return cfg, err
			}
			cfg = g
		}
	}
	for _, name := range LocalNames {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		l, err := LoadFile(p)
		if err != nil {
			return cfg, err
		}
		return cfg.Merge(l), nil
	}
	return cfg, nil
}

// GetTimeout parses the timeout, returning def when unset.
func (fc FileConfig) GetTimeout(def time.Duration) (time.Duration, error) {
	if fc.Timeout == nil || *fc.Timeout == "" {
		return def, nil
	}
	d, err := time.ParseDuration(*fc.Timeout)
	if err != nil {
		return def, fmt.Errorf("invalid timeout %q: %w", *fc.Timeout, err)
	}
	return d, nil
}

// IsCaptureGraphEnabled returns true unless graph capture was turned off.
func (fc FileConfig) IsCaptureGraphEnabled() bool {
	if fc.CaptureGraph == nil {
		return true
	}
	return *fc.CaptureGraph
}

// Template is written by `secai config init`.
const Template = `# secai configuration
investigation_url: http://localhost:8000
remediation_url: http://localhost:8001
timeout: 60s
expand_count: 3
output_dir: reports
log_level: info
no_color: false
offline: false
# report_title: Security Investigation Report
# mask credentials found in exported reports
redact_exports: false
capture_graph: true
# chrome_path: /usr/bin/chromium
`
