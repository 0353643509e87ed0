package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/secai/secai/internal/lifecycle"
	"github.com/secai/secai/internal/session"
	"github.com/secai/secai/internal/tree"
	"github.com/secai/secai/internal/types"
)

var (
	tableBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240"))

	detailPaneBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("7"))

	emptyTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Align(lipgloss.Center)

	popupStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(1, 4)

	confirmedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	plausibleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	implausibleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unverifiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

// statusText returns plain text for a status (ANSI codes break table truncation).
func statusText(s types.Status) string {
	switch s {
	case types.StatusConfirmed:
		return "CONFIRMED"
	case types.StatusPlausible:
		return "PLAUSIBLE"
	case types.StatusImplausible:
		return "IMPLAUSIBLE"
	case types.StatusUnverified:
		return "UNVERIFIED"
	default:
		return strings.ToUpper(string(s))
	}
}

func statusStyled(s types.Status) string {
	switch s {
	case types.StatusConfirmed:
		return confirmedStyle.Render(statusText(s))
	case types.StatusPlausible:
		return plausibleStyle.Render(statusText(s))
	case types.StatusImplausible:
		return implausibleStyle.Render(statusText(s))
	default:
		return unverifiedStyle.Render(statusText(s))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// Model is the investigation browser.
type Model struct {
	table    table.Model
	viewport viewport.Model
	spinner  spinner.Model

	sess  *session.Session
	opts  Options
	prefs Prefs

	root  *types.Node
	rows  []types.BoardNode
	token uint64

	details map[string]*types.NodeDetails

	quitting   bool
	ready      bool
	busy       bool
	busyLabel  string
	showHelp   bool
	status     string
	lastChange time.Time
	now        func() time.Time
	width      int
	height     int
}

// NewModel builds a browser over an already started session.
func NewModel(s *session.Session, opts Options) Model {
	columns := []table.Column{
		{Title: "Hypothesis", Width: 48},
		{Title: "Status", Width: 12},
		{Title: "Conf", Width: 6},
		{Title: "Lock", Width: 5},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("235"))
	st.Selected = st.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("208")).
		Bold(true)
	t.SetStyles(st)

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		table:    t,
		viewport: viewport.New(80, 10),
		spinner:  sp,
		sess:     s,
		opts:     opts,
		prefs:    opts.Prefs,
		details:  map[string]*types.NodeDetails{},
		now:      time.Now,
	}
	m.setTree(s.Snapshot(), s.Token())
	return m
}

// setTree replaces the displayed tree when the render token moved.
func (m *Model) setTree(root *types.Node, token uint64) {
	if root != nil && m.root != nil && token == m.token {
		return
	}
	m.root = root
	m.token = token
	m.lastChange = m.clock()
	m.rebuildRows()
}

func (m *Model) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func (m *Model) rebuildRows() {
	var rows []types.BoardNode
	tree.Walk(m.root, func(n *types.Node, depth int) bool {
		if m.prefs.HideImplausible && n.Status == types.StatusImplausible {
			return false
		}
		rows = append(rows, types.BoardNode{
			ID:          n.ID,
			Title:       n.Title,
			Description: n.Description,
			Type:        n.Type,
			Status:      n.Status,
			Confidence:  n.Confidence,
			Depth:       depth,
		})
		return true
	})
	m.rows = rows

	trs := make([]table.Row, len(rows))
	for i, r := range rows {
		lock := ""
		if n, ok := tree.Find(m.root, r.ID); ok && n.Locked {
			lock = "yes"
		}
		trs[i] = table.Row{
			strings.Repeat("  ", r.Depth) + r.Title,
			statusText(r.Status),
			fmt.Sprintf("%.0f%%", r.Confidence*100),
			lock,
		}
	}
	cursor := m.table.Cursor()
	m.table.SetRows(trs)
	if cursor >= len(trs) {
		cursor = len(trs) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.table.SetCursor(cursor)
	m.updateViewportContent()
}

// selected returns the node under the cursor.
func (m Model) selected() (*types.Node, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil, false
	}
	return tree.Find(m.root, m.rows[i].ID)
}

func (m *Model) updateViewportContent() {
	n, ok := m.selected()
	if !ok {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.detailContent(n))
	m.viewport.GotoTop()
}

func (m Model) detailContent(n *types.Node) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(n.Title))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "  %s %s   %s %.0f%%", keyStyle.Render("Status:"), statusStyled(n.Status),
		keyStyle.Render("Confidence:"), n.Confidence*100)
	if n.Locked {
		b.WriteString("   [locked]")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s\n", keyStyle.Render("ID:"), n.ID)

	desc := n.Description
	evidence := n.Evidence
	meta := n.Metadata
	if d, ok := m.details[n.ID]; ok && d != nil {
		if d.Description != "" {
			desc = d.Description
		}
		if len(d.Evidence) > 0 {
			evidence = d.Evidence
		}
		if len(d.Metadata) > 0 {
			meta = d.Metadata
		}
	}
	if desc != "" {
		fmt.Fprintf(&b, "\n  %s\n", desc)
	}
	if r := meta.Get("reasoning"); r != "" {
		fmt.Fprintf(&b, "\n  %s %s\n", keyStyle.Render("Reasoning:"), r)
	}
	if len(evidence) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", keyStyle.Render("Evidence:"))
		for _, e := range evidence {
			fmt.Fprintf(&b, "    - %s\n", e)
		}
	}
	if acts := lifecycle.Actions(n); len(acts) > 0 {
		b.WriteString("\n  " + keyStyle.Render("p") + " plausible  " + keyStyle.Render("i") + " implausible\n")
	}
	if m.prefs.ShowJSON {
		raw, err := json.MarshalIndent(nodeJSON(n), "", "  ")
		if err == nil {
			b.WriteString("\n")
			b.WriteString(highlightCode(string(raw), "node.json"))
		}
	}
	return b.String()
}

// nodeJSON is the node without its subtree, for previews and copying.
func nodeJSON(n *types.Node) types.Node {
	c := *n
	c.Children = nil
	return c
}

func highlightCode(code string, filename string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func (m Model) Init() tea.Cmd {
	if n, ok := m.selected(); ok {
		return m.detailsCmd(n.ID)
	}
	return nil
}

// start marks the model busy and runs cmd alongside the spinner.
func (m *Model) start(label string, cmd tea.Cmd) tea.Cmd {
	m.busy = true
	m.busyLabel = label
	return tea.Batch(m.spinner.Tick, cmd)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.showHelp = true
			return m, nil
		case "p", "i":
			n, ok := m.selected()
			if !ok {
				return m, nil
			}
			a := lifecycle.MarkPlausible
			if msg.String() == "i" {
				a = lifecycle.MarkImplausible
			}
			if len(lifecycle.Actions(n)) == 0 {
				m.status = fmt.Sprintf("%s cannot change status", n.Title)
				return m, nil
			}
			cmd = m.start("Updating "+n.Title, m.markCmd(n.ID, a))
			return m, cmd
		case "e":
			n, ok := m.selected()
			if !ok {
				return m, nil
			}
			cmd = m.start("Expanding "+n.Title, m.expandCmd(n.ID))
			return m, cmd
		case "r":
			cmd = m.start("Refreshing", m.refreshCmd())
			return m, cmd
		case "d":
			if n, ok := m.selected(); ok {
				delete(m.details, n.ID)
				return m, m.detailsCmd(n.ID)
			}
			return m, nil
		case "x":
			if m.opts.Exporter == nil {
				m.status = "Export is not configured"
				return m, nil
			}
			cmd = m.start("Exporting report", m.exportCmd())
			return m, cmd
		case "c":
			if n, ok := m.selected(); ok {
				return m, copyToClipboard(n.ID, "node id")
			}
			return m, nil
		case "y":
			if n, ok := m.selected(); ok {
				raw, err := json.MarshalIndent(nodeJSON(n), "", "  ")
				if err != nil {
					m.status = fmt.Sprintf("Copy failed: %v", err)
					return m, nil
				}
				return m, copyToClipboard(string(raw), "node JSON")
			}
			return m, nil
		case "v":
			m.prefs.ShowJSON = !m.prefs.ShowJSON
			m.updateViewportContent()
			return m, m.savePrefsCmd()
		case "h":
			m.prefs.HideImplausible = !m.prefs.HideImplausible
			m.rebuildRows()
			return m, m.savePrefsCmd()
		case "ctrl+d", "pgdown":
			m.viewport.HalfPageDown()
			return m, nil
		case "ctrl+u", "pgup":
			m.viewport.HalfPageUp()
			return m, nil
		}
		before := m.table.Cursor()
		m.table, cmd = m.table.Update(msg)
		if m.table.Cursor() != before {
			m.updateViewportContent()
			if n, ok := m.selected(); ok {
				if _, cached := m.details[n.ID]; !cached {
					return m, tea.Batch(cmd, m.detailsCmd(n.ID))
				}
			}
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case treeMsg:
		m.busy = false
		if msg.err != nil {
			m.status = errorStatus(msg.op, msg.err)
			if msg.root == nil {
				return m, nil
			}
		} else if msg.note != "" {
			m.status = msg.note
		}
		m.setTree(msg.root, msg.token)
		return m, m.persistCmd()

	case detailsMsg:
		if msg.err != nil {
			if isStale(msg.err) {
				return m, nil
			}
			m.status = errorStatus("details", msg.err)
			return m, nil
		}
		m.details[msg.id] = msg.details
		if n, ok := m.selected(); ok && n.ID == msg.id {
			m.updateViewportContent()
		}
		return m, nil

	case exportMsg:
		m.busy = false
		if msg.err != nil {
			m.status = errorStatus("export", msg.err)
			return m, nil
		}
		paths := make([]string, len(msg.artifacts))
		for i, a := range msg.artifacts {
			paths[i] = a.Path
		}
		m.status = "Exported " + strings.Join(paths, ", ")
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}
	return m, nil
}

func (m *Model) layout() {
	tableHeight := m.height/2 - 4
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)
	titleWidth := m.width - 12 - 6 - 5 - 10
	if titleWidth < 20 {
		titleWidth = 20
	}
	m.table.SetColumns([]table.Column{
		{Title: "Hypothesis", Width: titleWidth},
		{Title: "Status", Width: 12},
		{Title: "Conf", Width: 6},
		{Title: "Lock", Width: 5},
	})
	m.viewport.Width = m.width - 2
	vh := m.height - tableHeight - 8
	if vh < 3 {
		vh = 3
	}
	m.viewport.Height = vh
	m.updateViewportContent()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}
	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupStyle.Render(helpText()))
	}

	counts := map[types.Status]int{}
	for _, r := range m.rows {
		if r.Type != types.NodeRoot {
			counts[r.Status]++
		}
	}
	stats := fmt.Sprintf("Nodes: %-4d  |  %s %-3d  |  %s %-3d  |  %s %-3d  |  %s %-3d",
		len(m.rows),
		confirmedStyle.Render("Confirmed:"), counts[types.StatusConfirmed],
		plausibleStyle.Render("Plausible:"), counts[types.StatusPlausible],
		implausibleStyle.Render("Implausible:"), counts[types.StatusImplausible],
		unverifiedStyle.Render("Unverified:"), counts[types.StatusUnverified],
	)
	if m.prefs.HideImplausible {
		stats += "  [implausible hidden]"
	}
	statsHeader := lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 2).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("237")).
		Render(stats)

	tableRender := tableBorderStyle.
		Width(m.width).
		Height(m.table.Height()).
		Render(m.table.View())

	var detail string
	if len(m.rows) == 0 {
		detail = lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
			emptyTextStyle.Render("No hypotheses yet.\n\nPress 'r' to refresh\nPress '?' for help"))
	} else {
		detail = m.viewport.View()
	}
	detailRender := detailPaneBorderStyle.
		Width(m.width).
		Height(m.viewport.Height).
		Render(detail)

	left := m.status
	if m.busy {
		left = fmt.Sprintf("%s %s...", m.spinner.View(), m.busyLabel)
	}
	if left == "" {
		left = "? help  q quit"
	}
	right := fmt.Sprintf("updated %s ago", formatDuration(m.clock().Sub(m.lastChange)))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	statusBar := statusStyle.Width(m.width).Render(" " + left + strings.Repeat(" ", gap) + right + " ")

	return lipgloss.JoinVertical(lipgloss.Left, statsHeader, tableRender, detailRender, statusBar)
}

func helpText() string {
	keys := [][2]string{
		{"j/k, up/down", "move"},
		{"p", "mark plausible (expands the node)"},
		{"i", "mark implausible"},
		{"e", "request more hypotheses"},
		{"d", "reload details"},
		{"r", "refresh the tree"},
		{"x", "export the report"},
		{"c", "copy node id"},
		{"y", "copy node JSON"},
		{"v", "toggle JSON preview"},
		{"h", "hide implausible branches"},
		{"pgup/pgdown", "scroll details"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	b.WriteString("\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%-14s %s\n", keyStyle.Render(k[0]), k[1])
	}
	return b.String()
}
