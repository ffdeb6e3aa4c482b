package tui

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/shieldscan/shieldscan/internal/types"
	"github.com/shieldscan/shieldscan/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScanner struct {
	result types.ScanResult
	err    error
	block  chan struct{}
}

func (s *stubScanner) Scan(ctx context.Context, _ string) (types.ScanResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return types.ScanResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

type stubPDF struct{ body string }

func (s stubPDF) DownloadPDF(_ context.Context, _ int64, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.body)
	return int64(n), err
}

func fiveIssues() types.ScanResult {
	issues := make([]types.Issue, 5)
	for i := range issues {
		issues[i] = types.Issue{
			Title:       "Issue " + string(rune('A'+i)),
			Difficulty:  types.DifficultyEasy,
			ScoreImpact: 5,
			FixTitle:    "Fix it",
			FixSnippet:  "add_header X-Frame-Options DENY;",
		}
	}
	return types.ScanResult{ID: types.Int64(7), URL: "https://example.com", Score: 64, Grade: "C", Issues: issues}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	nm, cmd := m.Update(msg)
	return nm.(Model), cmd
}

func newTestModel(t *testing.T, sc session.Scanner, st store.ResultStore, opts ...session.Option) Model {
	t.Helper()
	ctrl := session.NewController(sc, st, opts...)
	m := NewModel(Options{Controller: ctrl, Store: st, ReturnAddr: "127.0.0.1:0", PDFDir: t.TempDir()})
	t.Cleanup(func() { m.closeListener(); m.cancel() })
	return m
}

// scan types domain, ticks the authorization box and runs the job to
// completion.
func scan(t *testing.T, m Model, domain string) Model {
	t.Helper()
	m.input.SetValue(domain)
	m, _ = press(t, m, keyTab)
	m, _ = press(t, m, runes("x"))
	require.True(t, m.authorized)
	m, _ = press(t, m, keyEnter)
	require.NotNil(t, m.job, "scan should have started")
	assert.Equal(t, session.Scanning, m.state.Phase)
	m, _ = press(t, m, runJob(m.job)())
	return m
}

func TestSubmit_RequiresAuthorization(t *testing.T) {
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m.input.SetValue("example.com")
	m, _ = press(t, m, keyEnter)

	assert.Nil(t, m.job)
	assert.Equal(t, session.Idle, m.state.Phase)
	assert.Equal(t, validate.ErrNotAuthorized.Error(), m.state.ValidationMessage)
}

func TestSubmit_ScanShowsGatedReport(t *testing.T) {
	st := store.NewMemoryStore()
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, st)
	m = scan(t, m, "example.com")

	assert.Equal(t, session.Resulted, m.state.Phase)
	assert.Equal(t, focusResults, m.focus)
	assert.False(t, m.authorized, "authorization is asked for every scan")

	content, lines := m.reportContent()
	assert.Len(t, lines, 5)
	assert.Contains(t, content, "Issue A")
	assert.NotContains(t, content, "Issue D")
	assert.Equal(t, 2, strings.Count(content, "Premium finding locked"))

	stored, err := st.Get()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", stored.URL)
}

func TestSubmit_FailureShowsGenericMessage(t *testing.T) {
	m := newTestModel(t, &stubScanner{err: errors.New("upstream 502: bad gateway")}, store.NewMemoryStore())
	m = scan(t, m, "example.com")

	assert.Equal(t, session.Errored, m.state.Phase)
	assert.Equal(t, focusDomain, m.focus)
	header := m.headerView()
	assert.Contains(t, header, session.GenericScanError)
	assert.NotContains(t, header, "502")
}

func TestExpandAndCopy(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m = scan(t, m, "example.com")

	m, _ = press(t, m, runes("j"))
	assert.Equal(t, 1, m.cursor)
	m, _ = press(t, m, keyEnter)
	assert.Equal(t, 1, m.state.ExpandedIndex())

	_, cmd := press(t, m, runes("c"))
	require.NotNil(t, cmd)
	assert.Equal(t, statusMsg("Copied fix snippet to clipboard"), cmd())
	assert.Equal(t, "add_header X-Frame-Options DENY;", copied)

	m, _ = press(t, m, keyEnter)
	assert.Equal(t, -1, m.state.ExpandedIndex())
}

func TestCursorStopsAtEnds(t *testing.T) {
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m = scan(t, m, "example.com")

	m, _ = press(t, m, runes("k"))
	assert.Equal(t, 0, m.cursor)
	for i := 0; i < 10; i++ {
		m, _ = press(t, m, runes("j"))
	}
	assert.Equal(t, 4, m.cursor)
}

func TestGatedFindingStartsCheckout(t *testing.T) {
	var opened string
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore(),
		session.WithOpener(func(site string) error { opened = site; return nil }))
	m = scan(t, m, "example.com")

	m.cursor = 3
	m, cmd := press(t, m, keyEnter)
	require.NotNil(t, cmd)
	require.NotNil(t, m.listener)
	assert.Equal(t, "https://example.com", opened)
	assert.Equal(t, -1, m.state.ExpandedIndex())

	nav, err := url.Parse(m.listener.ReturnURL() + "?paid=true")
	require.NoError(t, err)
	m, _ = press(t, m, checkoutReturnMsg{nav: nav})

	assert.Nil(t, m.listener)
	assert.True(t, m.state.PremiumUnlocked)
	content, _ := m.reportContent()
	assert.Contains(t, content, "Issue E")
	assert.NotContains(t, content, "Premium finding locked")
	assert.Contains(t, content, "Press d to download the PDF report.")
}

func TestUnlock_WithoutOpenerReportsError(t *testing.T) {
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m = scan(t, m, "example.com")

	m, _ = press(t, m, runes("u"))
	assert.Nil(t, m.listener)
	assert.Contains(t, m.statusMessage, "Checkout error")
}

func TestNewModel_ReturnURLRestoresStoredResult(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(fiveIssues()))

	nav, err := url.Parse("http://localhost:3000/?paid=true")
	require.NoError(t, err)
	ctrl := session.NewController(&stubScanner{}, st)
	m := NewModel(Options{Controller: ctrl, Store: st, ReturnURL: nav})
	t.Cleanup(m.cancel)

	assert.Equal(t, session.Resulted, m.state.Phase)
	assert.True(t, m.state.PremiumUnlocked)
	assert.Equal(t, focusResults, m.focus)
	assert.Equal(t, "Premium unlocked: full report restored", m.statusMessage)
}

func TestNewModel_UnpaidReturnChangesNothing(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(fiveIssues()))

	nav, err := url.Parse("http://localhost:3000/?paid=false")
	require.NoError(t, err)
	ctrl := session.NewController(&stubScanner{}, st)
	m := NewModel(Options{Controller: ctrl, Store: st, ReturnURL: nav})
	t.Cleanup(m.cancel)

	assert.Equal(t, session.Idle, m.state.Phase)
	assert.False(t, m.state.PremiumUnlocked)
}

func TestEscCancelsScan(t *testing.T) {
	sc := &stubScanner{result: fiveIssues(), block: make(chan struct{})}
	st := store.NewMemoryStore()
	m := newTestModel(t, sc, st)

	m.input.SetValue("example.com")
	m.authorized = true
	m, _ = press(t, m, keyEnter)
	job := m.job
	require.NotNil(t, job)

	m, _ = press(t, m, keyEsc)
	assert.Equal(t, session.Idle, m.state.Phase)
	assert.Equal(t, "Scan cancelled", m.statusMessage)

	// The cancelled request still reports back; it must be ignored.
	m, _ = press(t, m, runJob(job)())
	assert.Equal(t, session.Idle, m.state.Phase)
	_, err := st.Get()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStaleScanKeepsCurrentReport(t *testing.T) {
	sc := &stubScanner{result: fiveIssues(), block: make(chan struct{})}
	var outcomes []session.Outcome
	m := newTestModel(t, sc, store.NewMemoryStore(),
		session.WithAttemptHook(func(a session.Attempt) { outcomes = append(outcomes, a.Outcome) }))

	m.input.SetValue("example.com")
	m.authorized = true
	m, _ = press(t, m, keyEnter)
	stale := m.job
	require.NotNil(t, stale)
	m, _ = press(t, m, keyEsc)

	close(sc.block)
	m.authorized = true
	m, _ = press(t, m, keyEnter)
	require.NotNil(t, m.job)
	m, _ = press(t, m, runJob(m.job)())
	require.Equal(t, session.Resulted, m.state.Phase)
	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	require.Equal(t, 2, m.cursor)

	m, _ = press(t, m, runJob(stale)())
	assert.Equal(t, session.Resulted, m.state.Phase)
	assert.Equal(t, 2, m.cursor)
	assert.Equal(t, focusResults, m.focus)
	assert.Equal(t, []session.Outcome{session.OutcomeSucceeded, session.OutcomeDiscarded}, outcomes)
}

func TestUnlock_SecondPressWhileWaiting(t *testing.T) {
	opened := 0
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore(),
		session.WithOpener(func(string) error { opened++; return nil }))
	m = scan(t, m, "example.com")

	m, cmd := press(t, m, runes("u"))
	require.NotNil(t, cmd)
	l := m.listener
	require.NotNil(t, l)

	m, cmd = press(t, m, runes("u"))
	assert.Nil(t, cmd)
	assert.Same(t, l, m.listener)
	assert.Equal(t, 1, opened)
	assert.Equal(t, "Already waiting for checkout", m.statusMessage)
}

func TestResetReturnsToForm(t *testing.T) {
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m = scan(t, m, "example.com")

	m, _ = press(t, m, runes("n"))
	assert.Equal(t, session.Idle, m.state.Phase)
	assert.Nil(t, m.state.Result)
	assert.Equal(t, focusDomain, m.focus)
	assert.Equal(t, "example.com", m.input.Value())
}

func TestDownloadPDF(t *testing.T) {
	m := newTestModel(t, &stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m = scan(t, m, "example.com")

	_, cmd := press(t, m, runes("d"))
	require.NotNil(t, cmd)
	assert.Equal(t, statusMsg("PDF report requires the unlocked report"), cmd())

	st, err := m.ctrl.Dispatch(session.PaymentReturned{Paid: true})
	require.NoError(t, err)
	m.state = st
	m.opts.PDF = stubPDF{body: "%PDF-1.4"}

	_, cmd = press(t, m, runes("d"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(pdfSavedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.Equal(t, filepath.Join(m.opts.PDFDir, "shieldscan-report-7.pdf"), msg.path)
	b, err := os.ReadFile(msg.path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))
}

func TestSubmit_RemembersDomain(t *testing.T) {
	prefsPath := filepath.Join(t.TempDir(), "tui_prefs.json")
	ctrl := session.NewController(&stubScanner{result: fiveIssues()}, store.NewMemoryStore())
	m := NewModel(Options{Controller: ctrl, PrefsPath: prefsPath})
	t.Cleanup(m.cancel)

	m.input.SetValue("  example.com ")
	m.authorized = true
	m, _ = press(t, m, keyEnter)
	require.NotNil(t, m.job)
	assert.Equal(t, "example.com", LoadPrefs(prefsPath).LastDomain)

	m2 := NewModel(Options{Controller: ctrl, PrefsPath: prefsPath})
	t.Cleanup(m2.cancel)
	assert.Equal(t, "example.com", m2.input.Value())
}
