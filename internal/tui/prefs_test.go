package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPrefs(t *testing.T) {
	p := DefaultPrefs()
	assert.True(t, p.Highlight)
	assert.Empty(t, p.LastDomain)
}

func TestLoadPrefs_MissingFileUsesDefaults(t *testing.T) {
	p := LoadPrefs(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, DefaultPrefs(), p)
	assert.Equal(t, DefaultPrefs(), LoadPrefs(""))
}

func TestSaveAndLoadPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "tui_prefs.json")
	want := Prefs{LastDomain: "example.com", Highlight: false}
	require.NoError(t, SavePrefs(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, want, LoadPrefs(path))
}

func TestLoadPrefs_CorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tui_prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	assert.Equal(t, DefaultPrefs(), LoadPrefs(path))
}

func TestDefaultPrefsPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "shieldscan", "tui_prefs.json"), DefaultPrefsPath())
}

func TestSavePrefs_EmptyPathNoop(t *testing.T) {
	assert.NoError(t, SavePrefs("", DefaultPrefs()))
}
