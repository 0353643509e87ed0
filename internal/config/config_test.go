package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "secai.yaml", "expand_count: 4\ninvestigation_url: http://inv:9000\ncapture_graph: false\ntimeout: 5s\n")
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ExpandCount == nil || *cfg.ExpandCount != 4 {
		t.Fatalf("expected expand_count=4, got %#v", cfg.ExpandCount)
	}
	if cfg.InvestigationURL == nil || *cfg.InvestigationURL != "http://inv:9000" {
		t.Fatalf("unexpected investigation_url %#v", cfg.InvestigationURL)
	}
	if cfg.IsCaptureGraphEnabled() {
		t.Fatalf("expected capture_graph=false")
	}
	d, err := cfg.GetTimeout(time.Minute)
	if err != nil || d != 5*time.Second {
		t.Fatalf("expected timeout=5s, got %v (%v)", d, err)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "secai.yml", "expand_count: [\n")
	if _, err := LoadFile(p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadLocal_PrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	// place both, expect the dotfile to be picked first by search order
	writeTemp(t, dir, "secai.yaml", "expand_count: 1\n")
	writeTemp(t, dir, ".secai.yaml", "expand_count: 7\n")
	cfg, err := LoadLocal(dir)
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if cfg.ExpandCount == nil || *cfg.ExpandCount != 7 {
		t.Fatalf("expected expand_count=7 from .secai.yaml, got %#v", cfg.ExpandCount)
	}
}

func TestLoadLocal_NoConfig(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadLocal(dir); err == nil {
		t.Fatal("expected error when no local config exists")
	}
}

func TestLoadGlobal_XDG_Config(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "secai")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTemp(t, cfgDir, "config.yml", "log_level: debug\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.LogLevel == nil || *cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level=debug from global config, got %#v", cfg.LogLevel)
	}
}

func TestLoadGlobal_NoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if _, err := LoadGlobal(); err == nil {
		t.Fatal("expected error when no global config dir exists")
	}
}

func TestLoad_LocalOverridesGlobal(t *testing.T) {
	xdg := t.TempDir()
	if err := os.MkdirAll(filepath.Join(xdg, "secai"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTemp(t, filepath.Join(xdg, "secai"), "config.yml", "log_level: debug\nexpand_count: 2\n")
	t.Setenv("XDG_CONFIG_HOME", xdg)

	root := t.TempDir()
	writeTemp(t, root, ".secai.yml", "expand_count: 5\n")
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel == nil || *cfg.LogLevel != "debug" {
		t.Fatalf("global log_level lost: %#v", cfg.LogLevel)
	}
	if cfg.ExpandCount == nil || *cfg.ExpandCount != 5 {
		t.Fatalf("expected local expand_count=5, got %#v", cfg.ExpandCount)
	}
}

func TestTemplateParses(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(writeTemp(t, dir, "secai.yml", Template))
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	if cfg.RemediationURL == nil || *cfg.RemediationURL != "http://localhost:8001" {
		t.Fatalf("unexpected remediation_url %#v", cfg.RemediationURL)
	}
}

func TestGetTimeout_Invalid(t *testing.T) {
	s := "soon"
	if _, err := (FileConfig{Timeout: &s}).GetTimeout(time.Second); err == nil {
		t.Fatal("expected error for invalid timeout")
	}
}
