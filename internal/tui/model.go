package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shieldscan/shieldscan/internal/checkout"
	"github.com/shieldscan/shieldscan/internal/gate"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/shieldscan/shieldscan/internal/types"
)

var (
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

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	detailPaneBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240"))

	popupStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(1, 4)

	bandGoodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	bandFairStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	bandPoorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	diffEasyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	diffMediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	diffHardStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func bandStyle(b types.Band) lipgloss.Style {
	switch b {
	case types.BandGood:
		return bandGoodStyle
	case types.BandFair:
		return bandFairStyle
	default:
		return bandPoorStyle
	}
}

func difficultyStyle(d types.Difficulty) lipgloss.Style {
	switch d {
	case types.DifficultyEasy:
		return diffEasyStyle
	case types.DifficultyMedium:
		return diffMediumStyle
	default:
		return diffHardStyle
	}
}

// PDFDownloader fetches the premium PDF report. engine.Client satisfies it.
type PDFDownloader interface {
	DownloadPDF(ctx context.Context, id int64, w io.Writer) (int64, error)
}

// Options configures the TUI.
type Options struct {
	Controller *session.Controller
	Store      store.ResultStore
	// ReturnAddr is where the checkout return listener binds.
	ReturnAddr string
	// ReturnURL is a return from checkout handed in on the command line.
	ReturnURL *url.URL
	PDF       PDFDownloader
	PDFDir    string
	PrefsPath string
}

type focus int

const (
	focusDomain focus = iota
	focusAuthorized
	focusResults
)

// Model is the interactive scan screen.
type Model struct {
	ctrl *session.Controller
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	state    session.State
	job      *session.Job
	listener *checkout.Listener
	prefs    Prefs

	input      textinput.Model
	authorized bool
	focus      focus
	cursor     int

	spinner  spinner.Model
	viewport viewport.Model

	width    int
	height   int
	ready    bool
	quitting bool
	showHelp bool

	statusMessage string
	statusTimeout *time.Time // When to clear status message
}

type (
	statusMsg   string
	scanDoneMsg struct {
		job *session.Job
		ev  session.Event
	}
	checkoutReturnMsg struct {
		nav *url.URL
		err error
	}
	pdfSavedMsg struct {
		path string
		err  error
	}
)

// NewModel initializes a new TUI model. A ReturnURL in opts is reconciled
// before the first frame.
func NewModel(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Line
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prefs := LoadPrefs(opts.PrefsPath)

	ti := textinput.New()
	ti.Placeholder = "example.com"
	ti.Prompt = "Domain: "
	ti.CharLimit = 253
	ti.Width = 50
	ti.PromptStyle = keyStyle
	ti.SetValue(prefs.LastDomain)
	ti.Focus()

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		ctrl:     opts.Controller,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		prefs:    prefs,
		input:    ti,
		spinner:  s,
		viewport: viewport.New(80, 20),
		focus:    focusDomain,
	}
	m.state = m.ctrl.State()

	if opts.ReturnURL != nil {
		m.applyReturn(opts.ReturnURL)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(statusStyle.Render(""))
		vpHeight := m.height - headerHeight - footerHeight - detailPaneBorderStyle.GetVerticalFrameSize()
		if vpHeight < 3 {
			vpHeight = 3
		}
		m.viewport.Width = m.width - detailPaneBorderStyle.GetHorizontalFrameSize()
		m.viewport.Height = vpHeight
		statusStyle = statusStyle.Width(m.width)
		m.refreshViewport()
		return m, nil

	case scanDoneMsg:
		m.state = m.ctrl.Complete(msg.job, msg.ev)
		if m.job != msg.job {
			// abandoned attempt; the current view stays put
			return m, nil
		}
		m.job = nil
		m.afterScan()
		return m, nil

	case checkoutReturnMsg:
		m.closeListener()
		if msg.err != nil {
			if errors.Is(msg.err, context.Canceled) {
				return m, nil
			}
			m.setStatus(fmt.Sprintf("Checkout return failed: %v", msg.err))
			return m, nil
		}
		m.applyReturn(msg.nav)
		return m, nil

	case pdfSavedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("PDF download failed: %v", msg.err))
			return m, nil
		}
		m.setStatus("Saved PDF report to " + msg.path)
		return m, nil

	case statusMsg:
		m.setStatus(string(msg))
		return m, nil

	case spinner.TickMsg:
		var spinCmd tea.Cmd
		m.spinner, spinCmd = m.spinner.Update(msg)
		if m.statusTimeout != nil && time.Now().After(*m.statusTimeout) {
			m.statusTimeout = nil
			m.statusMessage = ""
		}
		return m, spinCmd
	}

	if m.focus == focusDomain {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setStatus(s string) {
	timeout := time.Now().Add(3 * time.Second)
	m.statusTimeout = &timeout
	m.statusMessage = s
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.state.Phase.InFlight() {
		if key == "esc" {
			return m.cancelScan()
		}
		if key == "q" {
			return m.quit()
		}
		return m, nil
	}

	switch m.focus {
	case focusDomain:
		switch key {
		case "enter":
			return m.submit()
		case "tab", "shift+tab", "down":
			m.setFocus(focusAuthorized)
			return m, nil
		case "esc":
			if m.state.Result != nil {
				m.setFocus(focusResults)
				return m, nil
			}
			return m.quit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case focusAuthorized:
		switch key {
		case " ", "x":
			m.authorized = !m.authorized
		case "enter":
			return m.submit()
		case "tab", "shift+tab", "up":
			m.setFocus(focusDomain)
		case "esc":
			if m.state.Result != nil {
				m.setFocus(focusResults)
				return m, nil
			}
			return m.quit()
		case "q":
			return m.quit()
		}
		return m, nil
	}

	// focusResults
	switch key {
	case "q", "esc":
		return m.quit()
	case "?":
		m.showHelp = true
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "enter", " ":
		return m.activate()
	case "c":
		return m, m.copySnippet()
	case "u":
		return m.unlock()
	case "d":
		return m, m.downloadPDF()
	case "n":
		return m.reset()
	case "/", "e":
		m.setFocus(focusDomain)
	case "pgdown", "ctrl+f":
		m.viewport.SetYOffset(m.viewport.YOffset + m.viewport.Height/2)
	case "pgup", "ctrl+b":
		m.viewport.SetYOffset(m.viewport.YOffset - m.viewport.Height/2)
	}
	return m, nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusDomain {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.job != nil {
		m.job.Cancel()
	}
	m.closeListener()
	m.cancel()
	return m, tea.Quit
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	domain := m.input.Value()
	job, err := m.ctrl.Begin(m.ctx, domain, m.authorized)
	m.state = m.ctrl.State()
	if err != nil {
		// Validation messages are part of the state and rendered inline.
		if errors.Is(err, session.ErrScanInFlight) {
			m.setStatus("A scan is already in progress")
		}
		return m, nil
	}
	m.job = job
	m.cursor = 0
	m.prefs.LastDomain = strings.TrimSpace(domain)
	_ = SavePrefs(m.opts.PrefsPath, m.prefs) //nolint:errcheck // prefs are best effort
	m.refreshViewport()
	return m, tea.Batch(m.spinner.Tick, runJob(job))
}

func runJob(job *session.Job) tea.Cmd {
	return func() tea.Msg {
		return scanDoneMsg{job: job, ev: job.Run()}
	}
}

func (m *Model) afterScan() {
	m.cursor = 0
	m.viewport.GotoTop()
	if m.state.Phase == session.Resulted {
		m.setFocus(focusResults)
		// The authorization must be given again for the next scan.
		m.authorized = false
	} else {
		m.setFocus(focusDomain)
	}
	m.refreshViewport()
}

func (m Model) cancelScan() (tea.Model, tea.Cmd) {
	st, _ := m.ctrl.Dispatch(session.Reset{})
	m.state = st
	m.job = nil
	m.setFocus(focusDomain)
	m.refreshViewport()
	m.setStatus("Scan cancelled")
	return m, nil
}

func (m Model) reset() (tea.Model, tea.Cmd) {
	st, _ := m.ctrl.Dispatch(session.Reset{})
	m.state = st
	m.cursor = 0
	m.authorized = false
	m.setFocus(focusDomain)
	m.refreshViewport()
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	rep, ok := m.state.Report()
	if !ok || len(rep.Findings) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(rep.Findings) {
		m.cursor = len(rep.Findings) - 1
	}
	m.refreshViewport()
}

// activate expands the selected finding, or starts checkout when it is
// locked.
func (m Model) activate() (tea.Model, tea.Cmd) {
	rep, ok := m.state.Report()
	if !ok || len(rep.Findings) == 0 {
		return m, nil
	}
	if !rep.Visible(m.cursor) {
		return m.unlock()
	}
	st, _ := m.ctrl.Dispatch(session.ToggleExpanded{Index: m.cursor})
	m.state = st
	m.refreshViewport()
	return m, nil
}

func (m *Model) applyReturn(nav *url.URL) {
	h := checkout.NewHandler(m.opts.Store)
	st, _, err := h.Enter(m.ctrl, nav)
	m.state = st
	switch {
	case err != nil:
		m.setStatus(fmt.Sprintf("Checkout error: %v", err))
	case !checkout.PaymentCompleted(nav):
		m.setStatus("Checkout was not completed")
	case st.Phase == session.Resulted:
		m.setStatus("Premium unlocked: full report restored")
	default:
		m.setStatus("Premium unlocked")
	}
	if st.Result != nil && !st.Phase.InFlight() {
		m.setFocus(focusResults)
	}
	m.refreshViewport()
}

func (m *Model) closeListener() {
	if m.listener != nil {
		_ = m.listener.Close()
		m.listener = nil
	}
}

func (m *Model) refreshViewport() {
	content, lines := m.reportContent()
	m.viewport.SetContent(content)
	if m.cursor < len(lines) {
		line := lines[m.cursor]
		if line < m.viewport.YOffset {
			m.viewport.SetYOffset(line)
		} else if line >= m.viewport.YOffset+m.viewport.Height {
			m.viewport.SetYOffset(line - m.viewport.Height + 1)
		}
	}
}

// reportContent renders the current report for the viewport and returns the
// line each finding starts on.
func (m Model) reportContent() (string, []int) {
	rep, ok := m.state.Report()
	if !ok {
		return "", nil
	}
	var b strings.Builder
	line := 0
	writeln := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
		line += strings.Count(s, "\n") + 1
	}

	writeln(fmt.Sprintf("%s  %s",
		bandStyle(rep.Band).Render(fmt.Sprintf("%d/100 (%s)", rep.Score, rep.Grade)),
		dimStyle.Render(rep.URL)))
	if rep.Summary != "" {
		writeln(lipgloss.NewStyle().Width(max(m.viewport.Width-2, 20)).Render(rep.Summary))
	}
	writeln("")
	if rep.Total == 0 {
		writeln(bandGoodStyle.Render("No issues found ✅"))
		return b.String(), nil
	}
	writeln(keyStyle.Render(fmt.Sprintf("Issues: %d", rep.Total)))

	lines := make([]int, len(rep.Findings))
	expanded := m.state.ExpandedIndex()
	for i, fd := range rep.Findings {
		lines[i] = line
		f := fd.Issue
		marker := "  "
		if i == m.cursor && m.focus == focusResults {
			marker = cursorStyle.Render("> ")
		}
		if fd.Gated {
			writeln(marker + dimStyle.Render(fmt.Sprintf("🔒 %s  [%s] -%d", gate.LockedTitle, f.Difficulty, f.ScoreImpact)))
			continue
		}
		head := fmt.Sprintf("%s  %s -%d",
			f.Title,
			difficultyStyle(f.Difficulty).Render("["+string(f.Difficulty)+" · "+f.Difficulty.FixEstimate()+"]"),
			f.ScoreImpact)
		writeln(marker + head)
		if i != expanded {
			continue
		}
		if f.Impact != "" {
			writeln("    " + f.Impact)
		}
		if f.FixTitle != "" {
			writeln("    " + keyStyle.Render(f.FixTitle))
		}
		if f.FixSnippet != "" {
			snippet := f.FixSnippet
			if m.prefs.Highlight {
				snippet = highlightSnippet(snippet)
			}
			for _, l := range strings.Split(strings.TrimRight(snippet, "\n"), "\n") {
				writeln("      " + l)
			}
		}
	}
	if rep.Locked > 0 {
		writeln("")
		writeln(errorStyle.Render(fmt.Sprintf("%d more findings locked. Press u to unlock the full report.", rep.Locked)))
	}
	if rep.PDFAvailable {
		writeln("")
		writeln(dimStyle.Render("Press d to download the PDF report."))
	}
	return b.String(), lines
}

func (m Model) headerView() string {
	title := titleStyle.Render("ShieldScan")
	if m.state.PremiumUnlocked {
		title += " " + bandGoodStyle.Render("PREMIUM")
	}
	check := "[ ]"
	if m.authorized {
		check = "[x]"
	}
	authLine := check + " I am authorized to scan this website"
	if m.focus == focusAuthorized {
		authLine = cursorStyle.Render(authLine)
	}
	lines := []string{title, m.input.View(), authLine}
	if m.state.ValidationMessage != "" {
		lines = append(lines, errorStyle.Render(m.state.ValidationMessage))
	}
	if m.state.Phase == session.Errored {
		lines = append(lines, errorStyle.Render(m.state.ErrorMessage))
	}
	return strings.Join(lines, "\n")
}

func (m Model) footerView() string {
	if m.statusMessage != "" {
		return statusStyle.Render(m.statusMessage)
	}
	var hint string
	switch {
	case m.state.Phase.InFlight():
		hint = "esc: cancel | q: quit"
	case m.focus == focusResults:
		hint = "j/k: navigate | enter: expand | c: copy fix | u: unlock | n: new scan | ?: help | q: quit"
	default:
		hint = "enter: scan | tab: switch field | space: toggle authorization | esc: quit"
	}
	return statusStyle.Render(hint)
}

func (m Model) helpView() string {
	rows := [][2]string{
		{"j/k", "move between findings"},
		{"enter", "expand a finding, or unlock a locked one"},
		{"c", "copy the expanded fix snippet"},
		{"u", "unlock the full report"},
		{"d", "download the PDF report (premium)"},
		{"n", "scan another site"},
		{"e", "edit the domain"},
		{"esc", "cancel a running scan"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys") + "\n\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s  %s\n", keyStyle.Render(fmt.Sprintf("%-6s", r[0])), r[1]))
	}
	return popupStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.helpView())
	}

	if m.state.Phase.InFlight() {
		msgContent := fmt.Sprintf("%s  Scanning %s...\n\nesc to cancel", m.spinner.View(), m.state.Target)
		popupBox := popupStyle.
			Width(55).
			Align(lipgloss.Center).
			Render(msgContent)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupBox)
	}

	body := ""
	if m.state.Result != nil {
		body = detailPaneBorderStyle.Render(m.viewport.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}
