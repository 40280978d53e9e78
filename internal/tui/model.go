package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"

	"github.com/olliecrow/screen_usage_monitor/internal/presenter"
	"github.com/olliecrow/screen_usage_monitor/internal/usage"
)

type Options struct {
	Interval  time.Duration
	NoColor   bool
	AltScreen bool
	Presenter *presenter.Presenter
}

type Model struct {
	interval  time.Duration
	presenter *presenter.Presenter

	width  int
	height int

	now time.Time

	lastAttemptAt     time.Time
	lastSuccessAt     time.Time
	lastFetchDuration time.Duration
	nextFetchAt       time.Time

	cursor int
	styles styles
}

type styles struct {
	title    lipgloss.Style
	dim      lipgloss.Style
	panel    lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	ok       lipgloss.Style
	warn     lipgloss.Style
	bad      lipgloss.Style
	accent   lipgloss.Style
	error    lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	loading  lipgloss.Style
}

type pollTickMsg struct {
	at time.Time
}

type clockTickMsg struct {
	at time.Time
}

type usageResultMsg struct {
	seq      uint64
	at       time.Time
	duration time.Duration
	usage    usage.UsageMap
	err      error
}

func NewModel(opts Options) Model {
	p := opts.Presenter
	if p == nil {
		p = presenter.New(nil, zerolog.Nop())
	}
	interval := opts.Interval
	if interval < 0 {
		interval = 0
	}
	now := time.Now().UTC()

	m := Model{
		interval:  interval,
		presenter: p,
		now:       now,
		styles:    defaultStyles(opts.NoColor),
	}
	if interval > 0 {
		m.nextFetchAt = now.Add(interval)
	}
	return m
}

func defaultStyles(noColor bool) styles {
	basePanel := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if noColor {
		return styles{
			title:    lipgloss.NewStyle().Bold(true),
			dim:      lipgloss.NewStyle(),
			panel:    basePanel,
			label:    lipgloss.NewStyle().Bold(true),
			value:    lipgloss.NewStyle(),
			ok:       lipgloss.NewStyle().Bold(true),
			warn:     lipgloss.NewStyle().Bold(true),
			bad:      lipgloss.NewStyle().Bold(true),
			accent:   lipgloss.NewStyle().Bold(true),
			error:    lipgloss.NewStyle().Bold(true),
			cursor:   lipgloss.NewStyle().Bold(true),
			selected: lipgloss.NewStyle().Bold(true),
			loading:  lipgloss.NewStyle(),
		}
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("24")).Padding(0, 1),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		panel:    basePanel.BorderForeground(lipgloss.Color("61")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("109")),
		value:    lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		ok:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		warn:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		bad:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		accent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		cursor:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("61")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		loading:  lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{clockCmd()}
	if req, ok := m.presenter.Start(); ok {
		cmds = append(cmds, requestCmd(req))
	}
	if m.interval > 0 {
		cmds = append(cmds, pollCmd(m.interval))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(v)
	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
	case pollTickMsg:
		m.nextFetchAt = v.at.UTC().Add(m.interval)
		cmds := []tea.Cmd{pollCmd(m.interval)}
		if m.presenter.State().Phase != presenter.PhaseLoading {
			if req, ok := m.presenter.Refresh(); ok {
				cmds = append(cmds, requestCmd(req))
			}
		}
		return m, tea.Batch(cmds...)
	case clockTickMsg:
		m.now = v.at.UTC()
		return m, clockCmd()
	case usageResultMsg:
		if !m.presenter.Resolve(v.seq, v.usage, v.err) {
			return m, nil
		}
		m.lastAttemptAt = v.at.UTC()
		m.lastFetchDuration = v.duration
		if v.err == nil {
			m.lastSuccessAt = v.at.UTC()
		}
		m.syncCursor()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(v tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch v.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r":
		if req, ok := m.presenter.Refresh(); ok {
			return m, requestCmd(req)
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presenter.State().Applications())-1 {
			m.cursor++
		}
	case "enter", " ":
		apps := m.presenter.State().Applications()
		if m.cursor >= 0 && m.cursor < len(apps) {
			m.presenter.Select(apps[m.cursor])
		}
	case "esc":
		m.presenter.ClearSelection()
	}
	return m, nil
}

// syncCursor keeps the cursor inside the list and on the selection, if any.
func (m *Model) syncCursor() {
	state := m.presenter.State()
	apps := state.Applications()
	if state.HasSelection {
		for i, app := range apps {
			if app == state.Selected {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(apps) {
		m.cursor = len(apps) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "initializing..."
	}

	header := m.renderHeader()
	body := m.renderBody()
	exitHint := m.styles.dim.Render("r refresh  up/down move  enter select  Ctrl+C to exit")

	top := lipgloss.JoinVertical(lipgloss.Left, header, body, "")
	combined := pinFooterToBottom(top, exitHint, m.height)
	return clipToViewport(combined, m.width, m.height)
}

func (m Model) renderHeader() string {
	title := m.styles.title.Render(" screen usage monitor ")
	state := m.presenter.State()

	stateText := "loading"
	stateStyle := m.styles.loading
	switch state.Phase {
	case presenter.PhaseLoaded:
		stateText = "loaded"
		stateStyle = m.styles.ok
	case presenter.PhaseFailed:
		stateText = "error"
		stateStyle = m.styles.bad
	}
	if m.presenter.Diagnostic() != nil {
		stateText = "unavailable"
		stateStyle = m.styles.warn
	}

	left := title + "  " + m.styles.label.Render("state: ") + stateStyle.Render(stateText)
	if m.interval > 0 && !m.nextFetchAt.IsZero() {
		refreshText := "[next refresh in " + humanDuration(m.nextFetchAt.Sub(m.now)) + "]"
		left += " " + m.styles.dim.Render(refreshText)
	}
	right := m.styles.dim.Render("utc " + m.now.Format("2006-01-02 15:04:05"))
	return joinWithPaddingKeepRight(left, right, m.width)
}

func (m Model) renderBody() string {
	contentWidth := max(20, m.width-4)
	state := m.presenter.State()

	var blocks []string
	if diag := m.presenter.Diagnostic(); diag != nil {
		line := m.styles.warn.Render("provider unavailable: " + diag.Error())
		blocks = append(blocks, ansi.Truncate(line, max(8, contentWidth), "..."))
	}

	switch state.Phase {
	case presenter.PhaseLoading:
		if m.presenter.Diagnostic() != nil && state.Seq == 0 {
			msg := m.styles.dim.Render("no usage request was issued; press r to try again")
			blocks = append(blocks, m.styles.panel.Width(contentWidth).Render(msg))
			break
		}
		blocks = append(blocks, m.styles.panel.Width(contentWidth).Render(m.styles.loading.Render("loading usage data...")))
	case presenter.PhaseFailed:
		lines := []string{
			m.styles.error.Render("failed to load usage: " + errorText(state.Err)),
			m.styles.dim.Render("press r to try again"),
		}
		for i := range lines {
			lines[i] = ansi.Truncate(lines[i], max(8, contentWidth-4), "...")
		}
		blocks = append(blocks, m.styles.panel.Width(contentWidth).Render(strings.Join(lines, "\n")))
	case presenter.PhaseLoaded:
		detail := m.renderDetailPanel(state, contentWidth)
		used := lipgloss.Height(detail) + 1 // last-update line
		for _, b := range blocks {
			used += lipgloss.Height(b)
		}
		blocks = append(blocks, m.renderListPanel(state, contentWidth, listRowsForLayout(m.height, used, verticalOverhead(m.styles.panel))))
		blocks = append(blocks, detail)
	}
	if line := m.renderLastUpdateLine(); line != "" {
		blocks = append(blocks, ansi.Truncate(line, max(8, contentWidth), "..."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (m Model) renderLastUpdateLine() string {
	if m.lastAttemptAt.IsZero() {
		return ""
	}
	text := "last attempt " + humanDuration(m.now.Sub(m.lastAttemptAt)) + " ago, took " + m.lastFetchDuration.Round(time.Millisecond).String()
	if !m.lastSuccessAt.IsZero() && !m.lastSuccessAt.Equal(m.lastAttemptAt) {
		text += "; last success " + humanDuration(m.now.Sub(m.lastSuccessAt)) + " ago"
	}
	return m.styles.dim.Render(text)
}

func (m Model) renderListPanel(state presenter.ViewState, width, rows int) string {
	apps := state.Applications()
	maxLineWidth := max(8, width-4)
	lines := []string{m.styles.accent.Render(fmt.Sprintf("applications (%d)", len(apps)))}
	if len(apps) == 0 {
		lines = append(lines, m.styles.dim.Render("no applications reported usage"))
		return m.styles.panel.Width(width).Render(strings.Join(lines, "\n"))
	}

	start, end := visibleWindow(len(apps), m.cursor, rows)
	for i := start; i < end; i++ {
		app := apps[i]
		marker := "  "
		if state.HasSelection && app == state.Selected {
			marker = "* "
		}
		text := marker + string(app)
		switch {
		case i == m.cursor:
			text = m.styles.cursor.Render(text)
		case state.HasSelection && app == state.Selected:
			text = m.styles.selected.Render(text)
		default:
			text = m.styles.value.Render(text)
		}
		lines = append(lines, ansi.Truncate(text, maxLineWidth, "..."))
	}
	if hidden := len(apps) - (end - start); hidden > 0 {
		lines = append(lines, m.styles.dim.Render(fmt.Sprintf("%d of %d shown", end-start, len(apps))))
	}
	return m.styles.panel.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetailPanel(state presenter.ViewState, width int) string {
	line, ok := state.SelectedLine()
	if !ok {
		return m.styles.panel.Width(width).Render(m.styles.dim.Render("no application selected"))
	}
	text := m.styles.label.Render("usage: ") + m.styles.value.Render(line)
	if d, found := state.Usage.Lookup(state.Selected); found {
		text += " " + m.styles.dim.Render("("+humanDuration(d.Duration())+")")
	}
	return m.styles.panel.Width(width).Render(ansi.Truncate(text, max(8, width-4), "..."))
}

// listRowsForLayout is the number of application rows that fit beside the
// header, footer and the other body blocks.
func listRowsForLayout(viewportHeight, otherBlocksHeight, panelVerticalOverhead int) int {
	bodyTargetHeight := max(1, viewportHeight-3) // header + spacer + footer
	rows := bodyTargetHeight - otherBlocksHeight - panelVerticalOverhead - 2 // title + overflow line
	if rows < 1 {
		return 1
	}
	return rows
}

// visibleWindow returns the [start, end) slice of a list of n rows that keeps
// cursor in view.
func visibleWindow(n, cursor, rows int) (int, int) {
	if rows <= 0 || n <= rows {
		return 0, n
	}
	start := cursor - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func pollCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pollTickMsg{at: t}
	})
}

func clockCmd() tea.Cmd {
	return tea.Tick(1*time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg{at: t}
	})
}

// requestCmd runs one provider call. No deadline is applied here; the
// provider owns its timeout policy.
func requestCmd(req presenter.Request) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		out, err := req.Run(context.Background())
		return usageResultMsg{
			seq:      req.Seq,
			at:       time.Now(),
			duration: time.Since(start),
			usage:    out,
			err:      err,
		}
	}
}

func Run(opts Options) error {
	model := NewModel(opts)
	progOpts := []tea.ProgramOption{}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	prog := tea.NewProgram(model, progOpts...)
	_, err := prog.Run()
	return err
}

func joinWithPaddingKeepRight(left, right string, width int) string {
	if width <= 0 {
		return ""
	}
	rightWidth := lipgloss.Width(right)
	if rightWidth >= width {
		return truncateRunes(right, width)
	}
	maxLeftWidth := width - rightWidth - 1
	if maxLeftWidth < 0 {
		maxLeftWidth = 0
	}
	left = truncateRunes(left, maxLeftWidth)
	leftWidth := lipgloss.Width(left)
	padding := width - leftWidth - rightWidth
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxRunes, "")
}

func clipToViewport(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i := range lines {
		lines[i] = truncateRunes(lines[i], width)
		pad := width - lipgloss.Width(lines[i])
		if pad > 0 {
			lines[i] += strings.Repeat(" ", pad)
		}
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func pinFooterToBottom(top, footer string, height int) string {
	if height <= 0 {
		return ""
	}
	footerLines := []string{}
	if footer != "" {
		footerLines = strings.Split(footer, "\n")
	}
	topLines := []string{}
	if top != "" {
		topLines = strings.Split(top, "\n")
	}

	maxTopLines := height - len(footerLines)
	if maxTopLines < 0 {
		maxTopLines = 0
	}
	if len(topLines) > maxTopLines {
		topLines = topLines[:maxTopLines]
	}
	for len(topLines) < maxTopLines {
		topLines = append(topLines, "")
	}

	all := append(topLines, footerLines...)
	if len(all) == 0 {
		return ""
	}
	return strings.Join(all, "\n")
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return d.String()
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func verticalOverhead(style lipgloss.Style) int {
	// Probe with a stable non-trivial height to avoid edge-case minimum sizing.
	const probeHeight = 20
	overhead := lipgloss.Height(style.Height(probeHeight).Render("")) - probeHeight
	if overhead < 0 {
		return 0
	}
	return overhead
}
