package secai

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/secai/secai/internal/board"
	"github.com/secai/secai/internal/export"
	"github.com/secai/secai/internal/lifecycle"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/tui"
	"github.com/secai/secai/internal/types"
	"github.com/spf13/cobra"
)

var (
	flagBreach       string
	flagInitialNodes int
	flagExpandN      int
	flagTUIFormats   string
	flagTUIOut       string
)

func init() {
	invCmd := &cobra.Command{Use: "investigate", Aliases: []string{"inv"}, Short: "Work on the hypothesis tree"}
	rootCmd.AddCommand(invCmd)

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start an investigation from a breach description",
		Args:  cobra.NoArgs,
		RunE:  runStart,
	}
	startCmd.Flags().StringVar(&flagBreach, "breach", "", "breach description, or @file to read it from a file")
	startCmd.Flags().IntVar(&flagInitialNodes, "nodes", 0, "number of initial hypotheses (default 3)")
	_ = startCmd.MarkFlagRequired("breach")
	invCmd.AddCommand(startCmd)

	invCmd.AddCommand(&cobra.Command{
		Use:   "tree",
		Short: "Show the current hypothesis tree",
		Args:  cobra.NoArgs,
		RunE:  runTree,
	})

	invCmd.AddCommand(&cobra.Command{
		Use:   "mark <id> plausible|implausible",
		Short: "Record a verdict on a hypothesis",
		Long:  "Marks a hypothesis plausible or implausible. Both verdicts lock the node; a plausible verdict also generates follow-up hypotheses under it.",
		Args:  cobra.ExactArgs(2),
		RunE:  runMark,
	})

	expandCmd := &cobra.Command{
		Use:   "expand <id>",
		Short: "Generate more hypotheses under a node",
		Args:  cobra.ExactArgs(1),
		RunE:  runExpand,
	}
	expandCmd.Flags().IntVarP(&flagExpandN, "num", "n", 0, "number of hypotheses (default expand_count)")
	invCmd.AddCommand(expandCmd)

	invCmd.AddCommand(&cobra.Command{
		Use:   "details <id>",
		Short: "Show the details of a node",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetails,
	})

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse and adjudicate the tree interactively",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}
	tuiCmd.Flags().StringVar(&flagTUIFormats, "format", "json,pdf", "formats written by the export key")
	tuiCmd.Flags().StringVar(&flagTUIOut, "out", "", "export directory (default output_dir)")
	invCmd.AddCommand(tuiCmd)
}

func runStart(cmd *cobra.Command, _ []string) error {
	breach, err := readArg(flagBreach)
	if err != nil {
		return err
	}
	if strings.TrimSpace(breach) == "" {
		return errors.New("breach description is empty")
	}
	inv, err := openInvestigation(cmd.Context(), true, session.WithInitialNodes(flagInitialNodes))
	if err != nil {
		return err
	}
	root, err := inv.sess.Start(cmd.Context(), breach)
	if err != nil {
		return err
	}
	if err := inv.save(); err != nil {
		return err
	}
	return printTree(cmd, root)
}

func runTree(cmd *cobra.Command, _ []string) error {
	inv, err := openInvestigation(cmd.Context(), false)
	if err != nil {
		return err
	}
	if err := inv.save(); err != nil {
		return err
	}
	return printTree(cmd, inv.sess.Snapshot())
}

func printTree(cmd *cobra.Command, root *types.Node) error {
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, root)
	}
	if err := board.PrintTable(out, board.Project(root)); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d nodes, fingerprint %s\n", tree.Count(root), tree.Fingerprint(root))
	return nil
}

func runMark(cmd *cobra.Command, args []string) error {
	action, err := lifecycle.ParseAction(args[1])
	if err != nil {
		return err
	}
	inv, err := openInvestigation(cmd.Context(), false)
	if err != nil {
		return err
	}
	res, markErr := inv.sess.Mark(cmd.Context(), args[0], action)
	if res.Tree == nil {
		return markErr
	}
	// A failed expansion leaves the verdict committed, so it is saved either way.
	if err := inv.save(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		if err := writeJSON(out, map[string]any{
			"node":   res.Node,
			"effect": res.Effect.String(),
			"added":  res.Added,
		}); err != nil {
			return err
		}
		return markErr
	}
	printNode(out, &res.Node)
	if res.Effect == lifecycle.EffectExpand {
		fmt.Fprintf(out, "  %d follow-up hypotheses added\n", res.Added)
	}
	return markErr
}

func runExpand(cmd *cobra.Command, args []string) error {
	inv, err := openInvestigation(cmd.Context(), false)
	if err != nil {
		return err
	}
	added, err := inv.sess.Expand(cmd.Context(), args[0], flagExpandN)
	if err != nil {
		return err
	}
	if err := inv.save(); err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]int{"added": added})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Added "+strconv.Itoa(added)+" hypotheses under "+args[0])
	return nil
}

func runDetails(cmd *cobra.Command, args []string) error {
	inv, err := openInvestigation(cmd.Context(), false)
	if err != nil {
		return err
	}
	d, err := inv.sess.Details(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, d)
	}
	fmt.Fprintln(out, d.Title)
	fmt.Fprintf(out, "  type: %s  status: %s  confidence: %s\n", d.Type, d.Status,
		types.Finding{Confidence: d.Confidence}.ConfidencePct())
	if d.Description != "" {
		fmt.Fprintln(out, "\n"+d.Description)
	}
	if len(d.Evidence) > 0 {
		fmt.Fprintln(out, "\nEvidence:")
		for _, e := range d.Evidence {
			fmt.Fprintln(out, "  - "+e)
		}
	}
	if r := d.Metadata.Get("reasoning"); r != "" {
		fmt.Fprintln(out, "\nReasoning: "+r)
	}
	return nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !stdoutIsTTY() {
		return errors.New("the TUI needs a terminal; use `secai investigate tree` instead")
	}
	formats, err := export.ParseFormats(flagTUIFormats)
	if err != nil {
		return err
	}
	inv, err := openInvestigation(cmd.Context(), false)
	if err != nil {
		return err
	}
	st := store()
	return tui.Run(inv.sess, tui.Options{
		Exporter:  newExporter(false),
		Formats:   formats,
		OutputDir: outputDir(flagTUIOut),
		Redact:    redactExports(),
		Audit:     auditLog(),
		Persist: func(string, *types.Node) error {
			if err := inv.save(); err != nil {
				return fmt.Errorf("save to %s: %w", st.Dir(), err)
			}
			return nil
		},
		Prefs: tui.LoadPrefs(),
	})
}
