package shieldscan

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shieldscan/shieldscan/internal/config"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const engineResult = `{"id":42,"url":"https://example.com","score":58,"grade":"C","ai_summary":"Needs work.",
"issues":[
{"title":"Missing CSP","difficulty":"Easy","score_impact":10,"fix_title":"Add a CSP","fix_snippet":"add_header Content-Security-Policy \"default-src 'self'\";"},
{"title":"No HSTS","difficulty":"Easy","score_impact":8},
{"title":"Server banner","difficulty":"Medium","score_impact":4},
{"title":"Admin panel exposed","difficulty":"Advanced","score_impact":15,"fix_snippet":"deny /admin"},
{"title":"Weak TLS","difficulty":"Hard","score_impact":5}]}`

type fakeEngine struct {
	*httptest.Server
	status int
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	fe := &fakeEngine{status: http.StatusOK}
	fe.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/scan":
			w.WriteHeader(fe.status)
			if fe.status == http.StatusOK {
				_, _ = io.WriteString(w, engineResult)
			} else {
				_, _ = io.WriteString(w, "internal trace: db down")
			}
		case "/api/scans/42/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, "%PDF-1.7 report")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fe.Close)
	return fe
}

func resetFlags() {
	flagAPIURL, flagStore, flagStorePath, flagReturnAddr = "", "", "", ""
	flagTimeout = 0
	flagDenyHosts = nil
	flagLogLevel, flagLogFile = "", ""
	flagNoColor, flagNoHistory, flagNoUpdateCheck = false, false, false
	flagAuthorized, flagJSON, flagSARIF, flagTable, flagFixes = false, false, false, false, false
	flagPDF = ""
	flagHistoryLimit, flagHistoryDelete = 20, 0
	flagHistoryClear, flagHistoryJSON = false, false
	flagStoreJSON = false
	cfgForce = false
}

// isolate points every user directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("CI", "1")
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvStore, "")
	t.Setenv(config.EnvLogLevel, "disabled")
	t.Setenv(config.EnvTimeout, "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScan_JSONIsGated(t *testing.T) {
	isolate(t)
	fe := newFakeEngine(t)

	out, err := execute(t, "scan", "example.com", "--authorized", "--json", "--api-url", fe.URL)
	require.NoError(t, err)

	var rep struct {
		URL      string `json:"url"`
		Total    int    `json:"total"`
		Locked   int    `json:"locked"`
		PDF      bool   `json:"pdf_available"`
		Findings []struct {
			Gated      bool   `json:"gated"`
			Title      string `json:"title"`
			FixSnippet string `json:"fix_snippet"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep), out)
	assert.Equal(t, "https://example.com", rep.URL)
	assert.Equal(t, 5, rep.Total)
	assert.Equal(t, 2, rep.Locked)
	assert.False(t, rep.PDF)
	require.Len(t, rep.Findings, 5)
	assert.Equal(t, "Missing CSP", rep.Findings[0].Title)
	assert.True(t, rep.Findings[3].Gated)
	assert.Empty(t, rep.Findings[3].FixSnippet)
	assert.NotContains(t, out, "deny /admin")
}

func TestScan_RequiresAuthorization(t *testing.T) {
	isolate(t)
	fe := newFakeEngine(t)

	_, err := execute(t, "scan", "example.com", "--api-url", fe.URL)
	assert.ErrorIs(t, err, validate.ErrNotAuthorized)
}

func TestScan_FailureIsGeneric(t *testing.T) {
	isolate(t)
	fe := newFakeEngine(t)
	fe.status = http.StatusInternalServerError

	_, err := execute(t, "scan", "example.com", "--authorized", "--api-url", fe.URL)
	require.Error(t, err)
	assert.Equal(t, session.GenericScanError, err.Error())
}

func TestScan_DenyHost(t *testing.T) {
	isolate(t)
	fe := newFakeEngine(t)

	_, err := execute(t, "scan", "intranet.corp", "--authorized", "--api-url", fe.URL, "--deny-host", "*.corp")
	assert.ErrorIs(t, err, validate.ErrDeniedHost)
}

func TestResume_UnlocksStoredResultAndDownloadsPDF(t *testing.T) {
	dir := isolate(t)
	fe := newFakeEngine(t)
	storePath := filepath.Join(dir, "last.json")

	_, err := execute(t, "scan", "example.com", "--authorized", "--json", "--api-url", fe.URL, "--store-path", storePath)
	require.NoError(t, err)

	pdf := filepath.Join(dir, "report.pdf")
	out, err := execute(t, "resume", "http://127.0.0.1:3000/?paid=true", "--api-url", fe.URL, "--store-path", storePath, "--pdf", pdf, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin panel exposed")
	assert.NotContains(t, out, "🔒")
	assert.Contains(t, out, "PDF report available")

	b, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 report", string(b))
}

func TestResume_Unpaid(t *testing.T) {
	isolate(t)
	_, err := execute(t, "resume", "http://127.0.0.1:3000/?paid=false", "--store", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not completed")
}

func TestHistory_ListsAttempts(t *testing.T) {
	isolate(t)
	fe := newFakeEngine(t)

	_, err := execute(t, "scan", "example.com", "--authorized", "--json", "--api-url", fe.URL, "--store", "memory")
	require.NoError(t, err)
	_, err = execute(t, "scan", "example.com", "--api-url", fe.URL, "--store", "memory")
	require.Error(t, err)

	out, err := execute(t, "history", "--json")
	require.NoError(t, err)
	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records), out)
	require.Len(t, records, 2)
	assert.Equal(t, "invalid", records[0]["outcome"])
	assert.Equal(t, "succeeded", records[1]["outcome"])

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "example.com")

	_, err = execute(t, "history", "--clear")
	require.NoError(t, err)
	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded attempts.")
}

func TestStoreShowAndClear(t *testing.T) {
	dir := isolate(t)
	fe := newFakeEngine(t)
	storePath := filepath.Join(dir, "results.db")

	out, err := execute(t, "store", "show", "--store", "sqlite", "--store-path", storePath)
	require.NoError(t, err)
	assert.Contains(t, out, "No saved scan result.")

	_, err = execute(t, "scan", "example.com", "--authorized", "--json", "--api-url", fe.URL, "--store", "sqlite", "--store-path", storePath)
	require.NoError(t, err)

	out, err = execute(t, "store", "show", "--store", "sqlite", "--store-path", storePath, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "https://example.com")
	assert.Contains(t, out, "🔒")

	_, err = execute(t, "store", "clear", "--store", "sqlite", "--store-path", storePath)
	require.NoError(t, err)
	out, err = execute(t, "store", "show", "--store", "sqlite", "--store-path", storePath)
	require.NoError(t, err)
	assert.Contains(t, out, "No saved scan result.")
}

func TestConfigInit(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".shieldscan.yml")

	out, err := execute(t, "config", "init", "--output", path, "--deny", "*.gov", "--result-store", "sqlite")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Wrote"))

	fc, err := config.LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, fc.Store)
	assert.Equal(t, "sqlite", *fc.Store)
	assert.Equal(t, []string{"*.gov"}, fc.DenyHosts)
	require.NotNil(t, fc.Timeout)
	assert.Equal(t, "1m0s", *fc.Timeout)

	_, err = execute(t, "config", "init", "--output", path)
	assert.Error(t, err, "existing file is not overwritten")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "shieldscan "+version+"\n", out)
}
