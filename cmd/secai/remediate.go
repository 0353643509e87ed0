package secai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/secai/secai/internal/board"
	"github.com/secai/secai/internal/remediation"
	"github.com/secai/secai/internal/roadmap"
	"github.com/secai/secai/internal/types"
	"github.com/spf13/cobra"
)

var (
	flagDocPath      string
	flagBoardStatus  string
	flagAll          bool
	flagUnselect     bool
	flagConcurrency  int
	flagRoadmapStyle string
	flagRoadmapRaw   bool
)

func init() {
	remCmd := &cobra.Command{Use: "remediate", Aliases: []string{"rem"}, Short: "Plan remediation for a finished investigation"}
	rootCmd.AddCommand(remCmd)

	loadCmd := &cobra.Command{
		Use:   "load <tree.json>",
		Short: "Load an investigation tree or exported report",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemLoad,
	}
	loadCmd.Flags().StringVar(&flagDocPath, "docs", "", "optional documentation file for context")
	remCmd.AddCommand(loadCmd)

	boardCmd := &cobra.Command{
		Use:   "board",
		Short: "Show the remediation board",
		Args:  cobra.NoArgs,
		RunE:  runRemBoard,
	}
	boardCmd.Flags().StringVar(&flagBoardStatus, "status", "", "comma-separated statuses to show (e.g. confirmed,plausible)")
	remCmd.AddCommand(boardCmd)

	perspCmd := &cobra.Command{
		Use:   "perspectives [id]",
		Short: "Generate remediation perspectives for a node",
		Long:  "Generates the incident response, security engineering, governance and compliance perspectives for one node, or with --all for every confirmed or plausible hypothesis.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRemPerspectives,
	}
	perspCmd.Flags().BoolVar(&flagAll, "all", false, "generate for every confirmed or plausible hypothesis")
	perspCmd.Flags().IntVar(&flagConcurrency, "concurrency", remediation.DefaultConcurrency, "parallel requests with --all")
	remCmd.AddCommand(perspCmd)

	selectCmd := &cobra.Command{
		Use:   "select <id> <perspective>",
		Short: "Accept (or with --unselect reject) a perspective",
		Args:  cobra.ExactArgs(2),
		RunE:  runRemSelect,
	}
	selectCmd.Flags().BoolVar(&flagUnselect, "unselect", false, "reject the perspective instead")
	remCmd.AddCommand(selectCmd)

	remCmd.AddCommand(&cobra.Command{
		Use:   "note <id> <text|@file>",
		Short: "Attach analyst notes to a node",
		Args:  cobra.ExactArgs(2),
		RunE:  runRemNote,
	})

	roadmapCmd := &cobra.Command{
		Use:   "roadmap",
		Short: "Generate the remediation roadmap",
		Args:  cobra.NoArgs,
		RunE:  runRemRoadmap,
	}
	roadmapCmd.Flags().StringVar(&flagRoadmapStyle, "style", "", "glamour style: dark|light|notty (default: detect)")
	roadmapCmd.Flags().BoolVar(&flagRoadmapRaw, "raw", false, "print the markdown without rendering")
	remCmd.AddCommand(roadmapCmd)
}

func runRemLoad(cmd *cobra.Command, args []string) error {
	svc, err := openRemediation()
	if err != nil {
		return err
	}
	nodes, err := svc.advisor.Load(cmd.Context(), args[0], flagDocPath)
	if err != nil {
		return err
	}
	if err := svc.save(); err != nil {
		return err
	}
	return printBoard(cmd, nodes)
}

func parseStatuses(s string) ([]types.Status, error) {
	var out []types.Status
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		st := types.Status(part)
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q", part)
		}
		out = append(out, st)
	}
	return out, nil
}

func runRemBoard(cmd *cobra.Command, _ []string) error {
	statuses, err := parseStatuses(flagBoardStatus)
	if err != nil {
		return err
	}
	svc, err := openRemediation()
	if err != nil {
		return err
	}
	nodes, err := svc.advisor.Board(cmd.Context())
	if err != nil {
		return err
	}
	return printBoard(cmd, board.Filter(nodes, statuses...))
}

func printBoard(cmd *cobra.Command, nodes []types.BoardNode) error {
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), nodes)
	}
	return board.PrintTable(cmd.OutOrStdout(), nodes)
}

func runRemPerspectives(cmd *cobra.Command, args []string) error {
	if flagAll == (len(args) == 1) {
		return fmt.Errorf("give either a node id or --all")
	}
	svc, err := openRemediation(remediation.WithConcurrency(flagConcurrency))
	if err != nil {
		return err
	}
	results := map[string]*types.Perspectives{}
	if flagAll {
		nodes, err := svc.advisor.Board(cmd.Context())
		if err != nil {
			return err
		}
		var ids []string
		for _, n := range remediation.Candidates(nodes) {
			ids = append(ids, n.ID)
		}
		if len(ids) == 0 {
			return fmt.Errorf("no confirmed or plausible hypotheses on the board")
		}
		results, err = svc.advisor.GenerateAll(cmd.Context(), ids)
		if err != nil {
			return err
		}
	} else {
		p, err := svc.advisor.Perspectives(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		results[args[0]] = p
	}
	if err := svc.save(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, results)
	}
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		remediation.PrintPerspectives(out, id, results[id], termWidth())
	}
	return nil
}

func runRemSelect(cmd *cobra.Command, args []string) error {
	t, err := types.ParsePerspectiveType(args[1])
	if err != nil {
		return err
	}
	svc, err := openRemediation()
	if err != nil {
		return err
	}
	if err := svc.advisor.Select(cmd.Context(), args[0], t, !flagUnselect); err != nil {
		return err
	}
	if err := svc.save(); err != nil {
		return err
	}
	verb := "Selected"
	if flagUnselect {
		verb = "Rejected"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s perspective for %s\n", verb, t, args[0])
	return nil
}

func runRemNote(cmd *cobra.Command, args []string) error {
	text, err := readArg(args[1])
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("note is empty")
	}
	svc, err := openRemediation()
	if err != nil {
		return err
	}
	if err := svc.advisor.Note(cmd.Context(), args[0], text); err != nil {
		return err
	}
	if err := svc.save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Noted on %s\n", args[0])
	return nil
}

func runRemRoadmap(cmd *cobra.Command, _ []string) error {
	svc, err := openRemediation()
	if err != nil {
		return err
	}
	r, err := svc.advisor.Roadmap(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flagJSON {
		text, err := roadmap.Text(r)
		if err != nil {
			return err
		}
		return writeJSON(out, roadmap.Structure(roadmap.Sections(text)))
	}
	if flagRoadmapRaw {
		text, err := roadmap.Text(r)
		if err != nil {
			return err
		}
		fmt.Fprint(out, roadmap.Markdown(roadmap.Sections(text)))
		return nil
	}
	style := flagRoadmapStyle
	if style == "" && !colorEnabled() {
		style = "notty"
	}
	fmt.Fprint(out, roadmap.Render(r, roadmap.RenderOptions{Width: termWidth(), Style: style}))
	return nil
}
