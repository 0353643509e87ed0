// Package core provides a small, stable facade over secai's internal
// investigation engine for external integrations. It re-exports a narrow API
// surface so other tools can depend on a stable import path without reaching
// into internal packages.
//
// Example:
//
//	s := core.NewOfflineSession()
//	root, err := s.Start(ctx, "Stolen VPN credentials used from abroad")
//	if err != nil { /* handle */ }
//	_, _ = s.Mark(ctx, root.Children[0].ID, core.MarkPlausible)
//	r, _ := s.Report(ctx)
//	_ = core.MarshalReport(os.Stdout, r)
package core
