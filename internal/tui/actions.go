package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shieldscan/shieldscan/internal/checkout"
	"github.com/shieldscan/shieldscan/internal/report"
	"github.com/shieldscan/shieldscan/internal/session"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

var listenReturn = checkout.Listen

func highlightSnippet(code string) string {
	return report.Highlight(code)
}

// copySnippet copies the fix snippet of the selected finding.
func (m Model) copySnippet() tea.Cmd {
	rep, ok := m.state.Report()
	if !ok || !rep.Visible(m.cursor) {
		return func() tea.Msg { return statusMsg("No fix selected") }
	}
	snippet := rep.Findings[m.cursor].Issue.FixSnippet
	if snippet == "" {
		return func() tea.Msg { return statusMsg("This finding has no fix snippet") }
	}
	if err := writeClipboard(snippet); err != nil {
		return func() tea.Msg { return statusMsg(fmt.Sprintf("Clipboard error: %v", err)) }
	}
	return func() tea.Msg { return statusMsg("Copied fix snippet to clipboard") }
}

// unlock opens checkout for the current result and waits for the browser to
// come back to the return listener.
func (m Model) unlock() (tea.Model, tea.Cmd) {
	if m.state.Result == nil {
		return m, nil
	}
	if m.state.PremiumUnlocked {
		m.setStatus("Full report already unlocked")
		return m, nil
	}
	if m.listener != nil {
		m.setStatus("Already waiting for checkout")
		return m, nil
	}
	l, err := listenReturn(m.opts.ReturnAddr)
	if err != nil {
		m.setStatus(fmt.Sprintf("Cannot wait for checkout: %v", err))
		return m, nil
	}
	m.listener = l
	st, err := m.ctrl.Dispatch(session.RequestCheckout{})
	m.state = st
	if err != nil {
		m.closeListener()
		m.setStatus(fmt.Sprintf("Checkout error: %v", err))
		return m, nil
	}
	m.setStatus("Complete checkout in your browser...")
	ctx := m.ctx
	return m, func() tea.Msg {
		u, err := l.Wait(ctx)
		return checkoutReturnMsg{nav: u, err: err}
	}
}

// downloadPDF saves the premium PDF report into the configured directory.
func (m Model) downloadPDF() tea.Cmd {
	rep, ok := m.state.Report()
	if !ok || !rep.PDFAvailable {
		return func() tea.Msg { return statusMsg("PDF report requires the unlocked report") }
	}
	if m.opts.PDF == nil {
		return func() tea.Msg { return statusMsg("PDF download not available") }
	}
	id := *rep.ID
	dir := m.opts.PDFDir
	if dir == "" {
		dir = "."
	}
	dl, ctx := m.opts.PDF, m.ctx
	return func() tea.Msg {
		path := filepath.Join(dir, fmt.Sprintf("shieldscan-report-%d.pdf", id))
		f, err := os.Create(path)
		if err != nil {
			return pdfSavedMsg{err: err}
		}
		if _, err := dl.DownloadPDF(ctx, id, f); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return pdfSavedMsg{err: err}
		}
		if err := f.Close(); err != nil {
			return pdfSavedMsg{err: err}
		}
		return pdfSavedMsg{path: path}
	}
}
