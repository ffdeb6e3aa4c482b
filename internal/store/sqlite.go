package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shieldscan/shieldscan/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the record in a single-row-per-key table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	key  string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(DefaultDir(), "results.db")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create result store dir: %w", err)
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(5000)",
			"journal_mode(WAL)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, path: path, key: DefaultKey}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS scan_results (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		checksum TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init result store schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get() (types.ScanResult, error) {
	var payload, sum string
	err := s.db.QueryRow(`SELECT payload, checksum FROM scan_results WHERE key = ?`, s.key).Scan(&payload, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ScanResult{}, ErrNotFound
	}
	if err != nil {
		return types.ScanResult{}, fmt.Errorf("read stored result: %w", err)
	}
	return decodeResult(s.key, []byte(payload), sum)
}

func (s *SQLiteStore) Set(r types.ScanResult) error {
	payload, sum, err := encodeResult(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO scan_results (key, payload, checksum, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, checksum = excluded.checksum, saved_at = excluded.saved_at`,
		s.key, string(payload), sum, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("write stored result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM scan_results WHERE key = ?`, s.key); err != nil {
		return fmt.Errorf("clear stored result: %w", err)
	}
	return nil
}
