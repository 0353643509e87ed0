package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
)

func TestOfflineSession_Smoke(t *testing.T) {
	ctx := context.Background()
	s := NewOfflineSession(WithTitle("Smoke"), WithExpandCount(2))
	root, err := s.Start(ctx, "Webshell found on the intranet portal")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if len(root.Children) == 0 {
		t.Fatal("expected initial hypotheses")
	}
	res, err := s.Mark(ctx, root.Children[0].ID, MarkPlausible)
	if err != nil {
		t.Fatalf("Mark error: %v", err)
	}
	if res.Added != 2 {
		t.Fatalf("expected 2 follow-up hypotheses, got %d", res.Added)
	}
	if _, err := s.Mark(ctx, root.Children[0].ID, MarkImplausible); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	r, err := s.Report(ctx)
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if r.Title != "Smoke" || len(r.Findings) != 1 {
		t.Fatalf("unexpected report: title=%q findings=%d", r.Title, len(r.Findings))
	}

	var buf bytes.Buffer
	if err := MarshalReport(&buf, r); err != nil {
		t.Fatalf("MarshalReport error: %v", err)
	}
	back, err := UnmarshalReport(&buf)
	if err != nil {
		t.Fatalf("UnmarshalReport error: %v", err)
	}
	if len(back.Findings) != 1 || back.GraphData == nil {
		t.Fatal("report did not survive the export format")
	}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	s := NewOfflineSession()
	if _, err := s.Start(ctx, "Leaked database backup"); err != nil {
		t.Fatal(err)
	}
	r, err := s.Report(ctx)
	if err != nil {
		t.Fatal(err)
	}
	art, err := ExportJSON(ctx, r, t.TempDir())
	if err != nil {
		t.Fatalf("ExportJSON error: %v", err)
	}
	if fi, err := os.Stat(art.Path); err != nil || fi.Size() != art.Size {
		t.Fatalf("artifact %s not written as reported: %v", art.Path, err)
	}
}
