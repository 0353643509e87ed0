package secai

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/secai/secai/internal/audit"
	"github.com/secai/secai/internal/cache"
	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/redact"
	"github.com/secai/secai/internal/report"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/types"
	"github.com/spf13/cobra"
)

var (
	flagTitle      string
	flagText       bool
	flagFormat     string
	flagOut        string
	flagNoGraph    bool
	flagMatch      string
	flagFromCache  bool
	flagHistoryMax int
	flagRedact     bool
)

func init() {
	repCmd := &cobra.Command{Use: "report", Short: "Build, show and export investigation reports"}
	rootCmd.AddCommand(repCmd)

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Snapshot the investigation into a report",
		Args:  cobra.NoArgs,
		RunE:  runReportBuild,
	}
	buildCmd.Flags().StringVar(&flagTitle, "title", "", "report title (default report_title or \"Security Investigation Report\")")
	repCmd.AddCommand(buildCmd)

	showCmd := &cobra.Command{
		Use:   "show [report.json]",
		Short: "Show a report (default: the last one built)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReportShow,
	}
	showCmd.Flags().BoolVar(&flagText, "text", false, "plain text instead of a table")
	repCmd.AddCommand(showCmd)

	exportCmd := &cobra.Command{
		Use:   "export [report.json]",
		Short: "Write the report as JSON, PDF and/or SARIF",
		Long:  "Exports the given report file, or the last built report with --cached, or a fresh snapshot of the investigation.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReportExport,
	}
	exportCmd.Flags().StringVar(&flagFormat, "format", "json,pdf", "comma-separated formats: json|pdf|sarif")
	exportCmd.Flags().StringVar(&flagOut, "out", "", "output directory (default output_dir or .)")
	exportCmd.Flags().BoolVar(&flagNoGraph, "no-graph", false, "skip the graph snapshot in PDFs")
	exportCmd.Flags().BoolVar(&flagFromCache, "cached", false, "export the last built report")
	exportCmd.Flags().StringVar(&flagTitle, "title", "", "report title for a fresh snapshot")
	exportCmd.Flags().BoolVar(&flagRedact, "redact", false, "mask credentials (API keys, tokens, passwords) in the exported report")
	repCmd.AddCommand(exportCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List past exports",
		Args:  cobra.NoArgs,
		RunE:  runReportList,
	}
	listCmd.Flags().StringVar(&flagMatch, "match", "", "only exports with an artifact path matching this glob (e.g. \"reports/**/*.pdf\")")
	listCmd.Flags().IntVar(&flagHistoryMax, "limit", 0, "show at most this many exports")
	repCmd.AddCommand(listCmd)

	repCmd.AddCommand(&cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare the findings of two reports",
		Long:  "Each argument is a report JSON file or the id (or id prefix) of a past export.",
		Args:  cobra.ExactArgs(2),
		RunE:  runReportDiff,
	})

	repCmd.AddCommand(&cobra.Command{
		Use:   "forget <export-id>",
		Short: "Remove an export from the history",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportForget,
	})
}

func buildReport(cmd *cobra.Command) (types.Report, error) {
	var extra []session.Option
	if flagTitle != "" {
		extra = append(extra, session.WithTitle(flagTitle))
	}
	inv, err := openInvestigation(cmd.Context(), false, extra...)
	if err != nil {
		return types.Report{}, err
	}
	r, err := inv.sess.Report(cmd.Context())
	if err != nil {
		return types.Report{}, err
	}
	if err := store().SaveReport(r); err != nil {
		return types.Report{}, err
	}
	return r, nil
}

func runReportBuild(cmd *cobra.Command, _ []string) error {
	r, err := buildReport(cmd)
	if err != nil {
		return err
	}
	return printReport(cmd, r)
}

func readReport(path string) (types.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Report{}, err
	}
	defer f.Close()
	return export.ParseJSON(f)
}

func runReportShow(cmd *cobra.Command, args []string) error {
	var r types.Report
	var err error
	if len(args) == 1 {
		r, err = readReport(args[0])
	} else {
		r, err = store().LoadReport()
		if errors.Is(err, cache.ErrNotFound) {
			return errors.New("no report built yet: run `secai report build`")
		}
	}
	if err != nil {
		return err
	}
	return printReport(cmd, r)
}

func printReport(cmd *cobra.Command, r types.Report) error {
	out := cmd.OutOrStdout()
	if flagJSON {
		return export.WriteJSON(out, r)
	}
	opts := report.PrintOptions{NoColor: !colorEnabled(), Width: termWidth() / 3}
	if flagText {
		report.PrintText(out, r, opts)
		return nil
	}
	return report.PrintTable(out, r, opts)
}

func runReportExport(cmd *cobra.Command, args []string) error {
	formats, err := export.ParseFormats(flagFormat)
	if err != nil {
		return err
	}
	var r types.Report
	switch {
	case len(args) == 1:
		r, err = readReport(args[0])
	case flagFromCache:
		r, err = store().LoadReport()
	default:
		r, err = buildReport(cmd)
	}
	if err != nil {
		return err
	}
	if redactExports() {
		var sum redact.Summary
		r, sum = redact.Report(r)
		if n := sum.Total(); n > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Masked %d credential(s): %s\n", n, strings.Join(sum.IDs(), ", "))
		}
	}

	arts, err := newExporter(flagNoGraph).Export(cmd.Context(), r, formats, outputDir(flagOut))
	if err != nil {
		return err
	}
	if err := auditLog().LogExport(audit.CreateExportRecord(r, arts)); err != nil {
		return fmt.Errorf("record export: %w", err)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, arts)
	}
	for _, a := range arts {
		fmt.Fprintf(out, "Wrote %s (%d bytes)\n", a.Path, a.Size)
	}
	return nil
}

func runReportList(cmd *cobra.Command, _ []string) error {
	records, err := auditLog().LoadHistory()
	if err != nil {
		return err
	}
	records, err = audit.Filter(records, flagMatch)
	if err != nil {
		return err
	}
	if flagHistoryMax > 0 && len(records) > flagHistoryMax {
		records = records[:flagHistoryMax]
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No exports recorded")
		return nil
	}
	table := tablewriter.NewWriter(out)
	table.Header("ID", "Exported", "Title", "Findings", "Artifacts")
	for _, rec := range records {
		paths := make([]string, len(rec.Artifacts))
		for i, a := range rec.Artifacts {
			paths[i] = a.Path
		}
		id := rec.ExportID
		if len(id) > 8 {
			id = id[:8]
		}
		if err := table.Append([]string{
			id,
			rec.Timestamp.Local().Format("2006-01-02 15:04"),
			rec.Title,
			strconv.Itoa(rec.Findings),
			strings.Join(paths, "\n"),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// resolveReport reads ref as a file, falling back to the export history.
func resolveReport(ref string) (types.Report, error) {
	if _, err := os.Stat(ref); err == nil {
		return readReport(ref)
	}
	rec, err := auditLog().Find(ref)
	if err != nil {
		return types.Report{}, err
	}
	if rec.Report == nil {
		return types.Report{}, fmt.Errorf("export %s has no report snapshot", rec.ExportID)
	}
	return *rec.Report, nil
}

func runReportDiff(cmd *cobra.Command, args []string) error {
	old, err := resolveReport(args[0])
	if err != nil {
		return err
	}
	cur, err := resolveReport(args[1])
	if err != nil {
		return err
	}
	d := report.Diff(old, cur)
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), d)
	}
	report.PrintDelta(cmd.OutOrStdout(), d)
	return nil
}

func runReportForget(cmd *cobra.Command, args []string) error {
	log := auditLog()
	rec, err := log.Find(args[0])
	if err != nil {
		return err
	}
	records, err := log.LoadHistory()
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.ExportID == rec.ExportID {
			if err := log.DeleteRecord(i); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed export", rec.ExportID)
			return nil
		}
	}
	return fmt.Errorf("no export with id %q", args[0])
}
