// Package report renders a gated scan report for the terminal and for
// machine-readable export.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/shieldscan/shieldscan/internal/gate"
	"github.com/shieldscan/shieldscan/internal/types"
)

type PrintOptions struct {
	NoColor bool
	// Fixes prints the remediation of every visible finding.
	Fixes    bool
	Duration time.Duration
}

// UpgradePrompt is shown under a report with locked findings.
func UpgradePrompt(rep gate.Report) string {
	return fmt.Sprintf("See all %d vulnerabilities & fixes: %d more locked. Run `shieldscan unlock` to get the full report.", rep.Total, rep.Locked)
}

type palette struct {
	good, fair, poor, dim, bold, locked *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		good:   color.New(color.FgGreen, color.Bold),
		fair:   color.New(color.FgYellow, color.Bold),
		poor:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
		locked: color.New(color.FgMagenta),
	}
	if noColor {
		for _, c := range []*color.Color{p.good, p.fair, p.poor, p.dim, p.bold, p.locked} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{p.good, p.fair, p.poor, p.dim, p.bold, p.locked} {
			c.EnableColor()
		}
	}
	return p
}

func (p palette) band(b types.Band) *color.Color {
	switch b {
	case types.BandGood:
		return p.good
	case types.BandFair:
		return p.fair
	default:
		return p.poor
	}
}

// PrintText writes rep as a plain list.
func PrintText(w io.Writer, rep gate.Report, opts PrintOptions) {
	p := newPalette(opts.NoColor)
	fmt.Fprintf(w, "%s %s\n", p.bold.Sprint("Target:"), rep.URL)
	fmt.Fprintf(w, "%s %s  grade %s\n", p.bold.Sprint("Score:"),
		p.band(rep.Band).Sprintf("%d/100", rep.Score), p.band(rep.Band).Sprint(rep.Grade))
	if rep.Summary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rep.Summary)
	}
	fmt.Fprintln(w)
	if rep.Total == 0 {
		fmt.Fprintln(w, "No issues found ✅")
	} else {
		fmt.Fprintf(w, "Issues: %d\n", rep.Total)
	}
	for _, f := range rep.Findings {
		is := f.Issue
		meta := p.dim.Sprintf("%-6s %-4s -%d", is.Difficulty, is.Difficulty.FixEstimate(), is.ScoreImpact)
		if f.Gated {
			fmt.Fprintf(w, "%2d. %s  %s %s\n", f.Index+1, meta, p.locked.Sprint("🔒 "+is.Title), p.dim.Sprint(categoryTag(is.Category)))
			continue
		}
		fmt.Fprintf(w, "%2d. %s  %s %s\n", f.Index+1, meta, is.Title, p.dim.Sprint(categoryTag(is.Category)))
		if is.Impact != "" {
			fmt.Fprintf(w, "      %s\n", is.Impact)
		}
		if opts.Fixes && is.FixSnippet != "" {
			if is.FixTitle != "" {
				fmt.Fprintf(w, "      %s %s\n", p.bold.Sprint("Fix:"), is.FixTitle)
			}
			snippet := is.FixSnippet
			if !opts.NoColor {
				snippet = Highlight(snippet)
			}
			for _, line := range strings.Split(strings.TrimRight(snippet, "\n"), "\n") {
				fmt.Fprintf(w, "        %s\n", line)
			}
		}
	}
	if rep.Locked > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.locked.Sprint(UpgradePrompt(rep)))
	}
	if rep.PDFAvailable {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "PDF report available: pass --pdf <file> to download it.")
	}
	if opts.Duration > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
}

// PrintTable writes the findings of rep as a bordered table followed by the
// score summary.
func PrintTable(w io.Writer, rep gate.Report, opts PrintOptions) error {
	p := newPalette(opts.NoColor)
	if rep.Total == 0 {
		fmt.Fprintln(w, "No issues found ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("#", "Difficulty", "Fix", "Impact", "Category", "Title")
		for _, f := range rep.Findings {
			title := f.Issue.Title
			if f.Gated {
				title = "🔒 " + title
			}
			if err := table.Append(
				strconv.Itoa(f.Index+1),
				string(f.Issue.Difficulty),
				f.Issue.Difficulty.FixEstimate(),
				"-"+strconv.Itoa(f.Issue.ScoreImpact),
				f.Issue.Category,
				title,
			); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "\nScore: %s (%s)  Issues: %d  Locked: %d\n",
		p.band(rep.Band).Sprintf("%d/100", rep.Score), rep.Grade, rep.Total, rep.Locked)
	if rep.Locked > 0 {
		fmt.Fprintln(w, UpgradePrompt(rep))
	}
	return nil
}

func categoryTag(c string) string {
	if c == "" {
		return ""
	}
	return "[" + c + "]"
}

// Highlight colours a remediation snippet for a 256-colour terminal. The
// language is guessed from the content; unknown snippets come back as-is.
func Highlight(code string) string {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
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
