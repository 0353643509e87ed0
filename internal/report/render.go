package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/secai/secai/internal/types"
)

type PrintOptions struct {
	NoColor bool
	// Width truncates descriptions in table output; 0 keeps them whole.
	Width int
}

// PrintTable renders the report header, findings table and recommendations.
func PrintTable(w io.Writer, r types.Report, opts PrintOptions) error {
	printHeader(w, r)
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No adjudicated hypotheses yet")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("#", "Status", "Confidence", "Title", "Description")
		for i, f := range r.Findings {
			status := string(f.Status)
			if !opts.NoColor {
				status = colorStatus(f.Status)
			}
			if err := table.Append([]string{
				fmt.Sprint(i + 1),
				status,
				f.ConfidencePct(),
				f.Title,
				truncate(f.Description, opts.Width),
			}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	printFooter(w, r)
	return nil
}

// PrintText renders the report as plain lines, one finding per line.
func PrintText(w io.Writer, r types.Report, opts PrintOptions) {
	printHeader(w, r)
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No adjudicated hypotheses yet")
	} else {
		fmt.Fprintf(w, "Findings: %d\n", len(r.Findings))
		for _, f := range r.Findings {
			status := string(f.Status)
			if !opts.NoColor {
				status = colorStatus(f.Status)
			}
			fmt.Fprintf(w, "%-11s %4s  %s\n", status, f.ConfidencePct(), f.Title)
		}
	}
	printFooter(w, r)
}

func printHeader(w io.Writer, r types.Report) {
	fmt.Fprintln(w, r.Title)
	fmt.Fprintf(w, "Generated: %s\n", r.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if r.Summary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.Summary)
	}
	fmt.Fprintln(w)
}

func printFooter(w io.Writer, r types.Report) {
	c := Counts(r.Findings)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d (confirmed: %d, plausible: %d, implausible: %d)\n",
		len(r.Findings), c[types.StatusConfirmed], c[types.StatusPlausible], c[types.StatusImplausible])
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  • %s\n", rec)
		}
	}
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 || len([]rune(s)) <= width {
		return s
	}
	rs := []rune(s)
	return string(rs[:width-1]) + "…"
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusConfirmed:
		return "\x1b[31mconfirmed\x1b[0m" // red
	case types.StatusPlausible:
		return "\x1b[33mplausible\x1b[0m" // yellow
	case types.StatusImplausible:
		return "\x1b[32mimplausible\x1b[0m" // green
	default:
		return "\x1b[36m" + string(s) + "\x1b[0m"
	}
}
