package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shieldscan/shieldscan/internal/types"
)

// FileStore keeps the record as a JSON file, replaced atomically on Set.
type FileStore struct {
	path string
	now  func() time.Time
}

// DefaultDir is $XDG_STATE_HOME/shieldscan, falling back to ~/.local/state.
func DefaultDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "shieldscan")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ".shieldscan"
	}
	return filepath.Join(home, ".local", "state", "shieldscan")
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join(DefaultDir(), "last_scan.json")
	}
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get() (types.ScanResult, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.ScanResult{}, ErrNotFound
	}
	if err != nil {
		return types.ScanResult{}, err
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return types.ScanResult{}, &DecodeError{Key: DefaultKey, Err: err}
	}
	if len(rec.Result) == 0 {
		return types.ScanResult{}, &DecodeError{Key: DefaultKey, Err: errors.New("empty record")}
	}
	return decodeResult(DefaultKey, rec.Result, rec.Checksum)
}

func (s *FileStore) Set(r types.ScanResult) error {
	payload, sum, err := encodeResult(r)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(record{
		Key:      DefaultKey,
		SavedAt:  s.now().UTC(),
		Checksum: sum,
		Result:   payload,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".last_scan-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
