// Package update checks GitHub releases for a newer shieldscan build.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"
	"github.com/shieldscan/shieldscan/internal/config"
)

const (
	// Repo is the GitHub slug releases are published under.
	Repo          = "shieldscan/shieldscan"
	cacheFileName = "update.json"
	cacheTTL      = 24 * time.Hour
)

// LatestURL is the releases endpoint for Repo.
var LatestURL = "https://api.github.com/repos/" + Repo + "/releases/latest"

type cache struct {
	LastChecked time.Time `json:"last_checked"`
	Latest      string    `json:"latest"`
}

// Checker looks up the latest release, caching the answer for a day.
type Checker struct {
	URL      string
	CacheDir string
	Client   *http.Client
	now      func() time.Time
}

func NewChecker() *Checker {
	return &Checker{
		URL:      LatestURL,
		CacheDir: config.GlobalDir(),
		Client:   &http.Client{Timeout: 2 * time.Second},
		now:      time.Now,
	}
}

func (c *Checker) loadCache() (cache, error) {
	var ca cache
	if c.CacheDir == "" {
		return ca, errors.New("no config dir")
	}
	b, err := os.ReadFile(filepath.Join(c.CacheDir, cacheFileName))
	if err != nil {
		return ca, err
	}
	_ = json.Unmarshal(b, &ca)
	return ca, nil
}

func (c *Checker) saveCache(ca cache) {
	if c.CacheDir == "" {
		return
	}
	_ = os.MkdirAll(c.CacheDir, 0o755)
	b, _ := json.MarshalIndent(ca, "", "  ")
	_ = os.WriteFile(filepath.Join(c.CacheDir, cacheFileName), b, 0o644)
}

// Latest asks the releases endpoint for the newest tag.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "shieldscan-updater")
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}
	var obj struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", err
	}
	v := obj.TagName
	if v == "" {
		v = obj.Name
	}
	return normalize(v), nil
}

// Check returns (latest, isNewer, error). It uses a 24h cache and skips in CI.
func (c *Checker) Check(ctx context.Context, current string, noNetwork bool) (string, bool, error) {
	if os.Getenv("CI") != "" || noNetwork {
		return "", false, nil
	}
	current = normalize(current)
	ca, _ := c.loadCache()
	latest := ca.Latest
	if c.now().Sub(ca.LastChecked) > cacheTTL || latest == "" {
		if v, err := c.Latest(ctx); err == nil && v != "" {
			latest = v
			ca.Latest = latest
			ca.LastChecked = c.now()
			c.saveCache(ca)
		}
	}
	if latest == "" || current == "" {
		return latest, false, nil
	}
	return latest, Compare(latest, current) > 0, nil
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimPrefix(v, "v")
}

// Compare orders two versions. Versions that are not semver compare as
// equal, so a development build never nags.
func Compare(a, b string) int {
	av, err := semver.ParseTolerant(a)
	if err != nil {
		return 0
	}
	bv, err := semver.ParseTolerant(b)
	if err != nil {
		return 0
	}
	return av.Compare(bv)
}
