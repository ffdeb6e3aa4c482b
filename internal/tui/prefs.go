package tui

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/shieldscan/shieldscan/internal/config"
)

// Prefs holds user preferences for the TUI that persist across sessions.
type Prefs struct {
	// LastDomain prefills the domain input. The authorization box is never
	// remembered and must be ticked for every scan.
	LastDomain string `json:"last_domain"`
	// Highlight controls syntax highlighting of fix snippets.
	Highlight bool `json:"highlight"`
}

// DefaultPrefs returns the default preferences.
func DefaultPrefs() Prefs {
	return Prefs{Highlight: true}
}

// DefaultPrefsPath returns the path to the TUI preferences file.
func DefaultPrefsPath() string {
	dir := config.GlobalDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "tui_prefs.json")
}

// LoadPrefs loads user preferences from path, returning defaults if not found.
func LoadPrefs(path string) Prefs {
	prefs := DefaultPrefs()
	if path == "" {
		return prefs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return prefs // File doesn't exist yet, use defaults
	}
	_ = json.Unmarshal(data, &prefs) //nolint:errcheck // fall back to defaults
	return prefs
}

// SavePrefs persists user preferences to path. An empty path is a no-op.
func SavePrefs(path string, prefs Prefs) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
