package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheck_NoNetworkOrCI(t *testing.T) {
	t.Setenv("CI", "1")
	c := NewChecker()
	if latest, newer, err := c.Check(context.Background(), "1.0.0", false); err != nil || latest != "" || newer {
		t.Fatalf("expected no-op in CI; got latest=%q newer=%v err=%v", latest, newer, err)
	}
}

func TestNormalizeAndCompare(t *testing.T) {
	if normalize(" v1.2.3 ") != "1.2.3" {
		t.Fatalf("normalize failed")
	}
	if Compare("1.2.3", "v1.2.3") != 0 {
		t.Fatalf("compare equal failed")
	}
	if Compare("1.3.0", "1.2.9") <= 0 {
		t.Fatalf("compare greater failed")
	}
	if Compare("1.2.0", "1.2.1") >= 0 {
		t.Fatalf("compare lesser failed")
	}
	if Compare("1.2.0", "deadbeef") != 0 {
		t.Fatalf("expected non-semver to compare equal")
	}
}

func TestCheck_UsesCacheWhenFresh(t *testing.T) {
	t.Setenv("CI", "")
	dir := t.TempDir()
	b, _ := json.Marshal(cache{LastChecked: time.Now(), Latest: "1.2.3"})
	if err := os.WriteFile(filepath.Join(dir, cacheFileName), b, 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewChecker()
	c.CacheDir = dir
	c.URL = "http://127.0.0.1:1/unreachable"
	latest, newer, err := c.Check(context.Background(), "1.2.2", false)
	if err != nil {
		t.Fatal(err)
	}
	if latest != "1.2.3" || !newer {
		t.Fatalf("expected cached latest=1.2.3 and newer=true; got latest=%q newer=%v", latest, newer)
	}
}

func TestCheck_RefreshesFromServer(t *testing.T) {
	t.Setenv("CI", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": "v9.9.9"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewChecker()
	c.CacheDir = dir
	c.URL = srv.URL
	latest, newer, err := c.Check(context.Background(), "0.1.0", false)
	if err != nil {
		t.Fatal(err)
	}
	if latest != "9.9.9" || !newer {
		t.Fatalf("expected latest=9.9.9 newer=true; got %q %v", latest, newer)
	}
	if _, err := os.Stat(filepath.Join(dir, cacheFileName)); err != nil {
		t.Fatalf("expected cache written: %v", err)
	}
}

func TestLatest_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	c := NewChecker()
	c.URL = srv.URL
	if _, err := c.Latest(context.Background()); err == nil {
		t.Fatal("expected error for non-200")
	}
}
