package secai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/secai/secai/internal/audit"
	"github.com/secai/secai/internal/cache"
	"github.com/secai/secai/internal/client"
	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/logging"
	"github.com/secai/secai/internal/offline"
	"github.com/secai/secai/internal/remediation"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/types"
	"golang.org/x/term"
)

const defaultTimeout = 60 * time.Second

func pickString(cli string, local, global *string) string {
	if cli != "" {
		return cli
	}
	if local != nil && *local != "" {
		return *local
	}
	if global != nil && *global != "" {
		return *global
	}
	return ""
}

func pickInt(cli int, local, global *int) int {
	if cli != 0 {
		return cli
	}
	if local != nil && *local != 0 {
		return *local
	}
	if global != nil && *global != 0 {
		return *global
	}
	return 0
}

func pickBool(cli bool, local, global *bool) bool {
	if cli {
		return true
	}
	if local != nil {
		return *local
	}
	if global != nil {
		return *global
	}
	return false
}

func timeout() (time.Duration, error) {
	if flagTimeout > 0 {
		return flagTimeout, nil
	}
	return cfg.GetTimeout(defaultTimeout)
}

func offlineMode() bool { return pickBool(flagOffline, cfg.Offline, nil) }

func redactExports() bool { return pickBool(flagRedact, cfg.RedactExports, nil) }

func stdoutIsTTY() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func colorEnabled() bool {
	return !pickBool(flagNoColor, cfg.NoColor, nil) && os.Getenv("NO_COLOR") == "" && stdoutIsTTY()
}

func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

func store() *cache.Store {
	wd, _ := os.Getwd()
	return cache.New(wd)
}

func auditLog() *audit.AuditLog { return audit.NewAuditLog(store().Dir()) }

func outputDir(cli string) string {
	if d := pickString(cli, cfg.OutputDir, nil); d != "" {
		return d
	}
	return "."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readArg returns s, or the contents of the file when s is "@path".
func readArg(s string) (string, error) {
	if !strings.HasPrefix(s, "@") {
		return s, nil
	}
	b, err := os.ReadFile(s[1:])
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func clientOptions(component string) ([]client.Option, error) {
	d, err := timeout()
	if err != nil {
		return nil, err
	}
	return []client.Option{
		client.WithTimeout(d),
		client.WithLogger(logging.New(component)),
	}, nil
}

// investigation bundles a session with the persistence its backend needs.
type investigation struct {
	sess *session.Session
	// save records the current tree so later invocations can pick it up.
	save func() error
}

func sessionOptions(extra []session.Option) []session.Option {
	opts := []session.Option{
		session.WithLogger(logging.New("session")),
		session.WithTitle(pickString("", cfg.ReportTitle, nil)),
		session.WithExpandCount(pickInt(0, cfg.ExpandCount, nil)),
	}
	return append(opts, extra...)
}

// openInvestigation builds a session over the configured backend. Unless
// fresh is set, the current investigation is loaded into it: from the
// service when online, from the workspace cache when offline.
func openInvestigation(ctx context.Context, fresh bool, extra ...session.Option) (*investigation, error) {
	st := store()
	saved, err := st.LoadInvestigation()
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return nil, err
	}

	if offlineMode() {
		backend := offline.NewInvestigation(offline.TemplateGenerator{})
		s := session.New(backend, sessionOptions(extra)...)
		inv := &investigation{sess: s, save: func() error {
			breach, root := backend.State()
			if root == nil {
				return nil
			}
			return st.SaveInvestigation(cache.Investigation{Breach: breach, Tree: root})
		}}
		if fresh {
			return inv, nil
		}
		if saved.Tree == nil {
			return nil, fmt.Errorf("no offline investigation in %s: run `secai investigate start --offline` first", st.Dir())
		}
		backend.Restore(saved.Breach, saved.Tree)
		if err := s.Restore(saved.Breach, saved.Tree); err != nil {
			return nil, fmt.Errorf("cached investigation: %w", err)
		}
		return inv, nil
	}

	opts, err := clientOptions("investigation")
	if err != nil {
		return nil, err
	}
	url := pickString(flagInvestigationURL, cfg.InvestigationURL, nil)
	if url == "" {
		url = client.DefaultInvestigationURL
	}
	c, err := client.NewInvestigation(url, opts...)
	if err != nil {
		return nil, err
	}
	s := session.New(c, sessionOptions(extra)...)
	inv := &investigation{sess: s, save: func() error {
		root := s.Snapshot()
		if root == nil {
			return nil
		}
		return st.SaveInvestigation(cache.Investigation{Breach: s.Breach(), Tree: root})
	}}
	if fresh {
		return inv, nil
	}
	root, err := c.Tree(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Restore(saved.Breach, root); err != nil {
		return nil, fmt.Errorf("investigation tree: %w", err)
	}
	return inv, nil
}

// remediationService bundles an advisor with the persistence its backend needs.
type remediationService struct {
	advisor *remediation.Advisor
	save    func() error
}

func openRemediation(extra ...remediation.Option) (*remediationService, error) {
	aopts := append([]remediation.Option{remediation.WithLogger(logging.New("remediation"))}, extra...)
	if offlineMode() {
		st := store()
		svc := offline.NewRemediation()
		saved, err := st.LoadRemediation()
		switch {
		case err == nil:
			svc.Restore(saved)
		case !errors.Is(err, cache.ErrNotFound):
			return nil, err
		}
		return &remediationService{
			advisor: remediation.New(svc, aopts...),
			save:    func() error { return st.SaveRemediation(svc.State()) },
		}, nil
	}

	opts, err := clientOptions("remediation")
	if err != nil {
		return nil, err
	}
	url := pickString(flagRemediationURL, cfg.RemediationURL, nil)
	if url == "" {
		url = client.DefaultRemediationURL
	}
	c, err := client.NewRemediation(url, opts...)
	if err != nil {
		return nil, err
	}
	return &remediationService{
		advisor: remediation.New(c, aopts...),
		save:    func() error { return nil },
	}, nil
}

func newExporter(noGraph bool) *export.Exporter {
	e := &export.Exporter{Log: logging.New("export"), Version: version}
	if !noGraph && cfg.IsCaptureGraphEnabled() {
		d, err := timeout()
		if err != nil {
			d = defaultTimeout
		}
		e.Capturer = export.ChromeCapturer{ExecPath: pickString("", cfg.ChromePath, nil), Timeout: d}
	}
	return e
}

func printNode(w io.Writer, n *types.Node) {
	fmt.Fprintf(w, "%s  %s\n", n.ID, n.Title)
	fmt.Fprintf(w, "  status: %s  confidence: %s", n.Status, types.Finding{Confidence: n.Confidence}.ConfidencePct())
	if n.Locked {
		fmt.Fprint(w, "  (locked)")
	}
	fmt.Fprintln(w)
}
