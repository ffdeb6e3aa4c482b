package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shieldscan/shieldscan/internal/types"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 8 << 20
)

// ErrScanFailed matches every RequestError, whatever the underlying cause.
var ErrScanFailed = errors.New("scan failed")

// RequestError describes a failed call to the engine. StatusCode is zero for
// transport and decode failures.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: engine returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrScanFailed }

// Client talks to the remote scanning engine.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

type Option func(*Client)

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "shieldscan",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the engine root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

type scanRequest struct {
	URL string `json:"url"`
}

// Scan submits target to POST /api/scan. Only a 200 response carrying a valid
// ScanResult succeeds; everything else is a *RequestError.
func (c *Client) Scan(ctx context.Context, target string) (types.ScanResult, error) {
	var res types.ScanResult

	body, err := json.Marshal(scanRequest{URL: target})
	if err != nil {
		return res, &RequestError{Op: "scan", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan", bytes.NewReader(body))
	if err != nil {
		return res, &RequestError{Op: "scan", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return res, &RequestError{Op: "scan", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return res, &RequestError{Op: "scan", StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&res); err != nil {
		return types.ScanResult{}, &RequestError{Op: "decode scan result", Err: err}
	}
	if err := res.Validate(); err != nil {
		return types.ScanResult{}, &RequestError{Op: "decode scan result", Err: err}
	}
	if res.Issues == nil {
		res.Issues = []types.Issue{}
	}
	return res, nil
}

// CheckoutURL is the payment hand-off for site. The browser navigates there;
// the client never reads the response.
func (c *Client) CheckoutURL(site string) string {
	return c.baseURL + "/api/checkout?" + url.Values{"site": []string{site}}.Encode()
}

// PDFURL is the download link for a persisted scan.
func (c *Client) PDFURL(id int64) string {
	return c.baseURL + "/api/scans/" + strconv.FormatInt(id, 10) + "/pdf"
}

// DownloadPDF streams the engine's PDF report for id into w.
func (c *Client) DownloadPDF(ctx context.Context, id int64, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PDFURL(id), nil)
	if err != nil {
		return 0, &RequestError{Op: "download pdf", Err: err}
	}
	req.Header.Set("Accept", "application/pdf")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &RequestError{Op: "download pdf", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &RequestError{Op: "download pdf", StatusCode: resp.StatusCode}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &RequestError{Op: "download pdf", Err: err}
	}
	return n, nil
}
