package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/shieldscan/shieldscan/internal/types"
)

// DefaultKey names the single persisted record.
const DefaultKey = "lastScanResult"

// ErrNotFound is returned by Get when nothing has been stored.
var ErrNotFound = errors.New("no stored scan result")

// DecodeError reports a persisted record that cannot be restored. Readers
// treat it the same as ErrNotFound.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode stored result %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResultStore holds at most one ScanResult snapshot. Writes are last-write-wins.
type ResultStore interface {
	Get() (types.ScanResult, error)
	Set(types.ScanResult) error
	Clear() error
}

// Kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Open builds the store named by kind. path is a file for KindFile and a
// database file for KindSQLite; it is ignored for KindMemory.
func Open(kind, path string) (ResultStore, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindFile:
		return NewFileStore(path), nil
	case KindSQLite:
		return NewSQLiteStore(path)
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown result store %q (want file|sqlite|memory)", kind)
	}
}

// record is the serialized envelope shared by the backends.
type record struct {
	Key      string          `json:"key"`
	SavedAt  time.Time       `json:"saved_at"`
	Checksum string          `json:"checksum"`
	Result   json.RawMessage `json:"result"`
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

func encodeResult(r types.ScanResult) (payload []byte, sum string, err error) {
	payload, err = json.Marshal(r)
	if err != nil {
		return nil, "", err
	}
	return payload, checksum(payload), nil
}

func decodeResult(key string, payload []byte, sum string) (types.ScanResult, error) {
	var r types.ScanResult
	// the file envelope is indented, the checksum covers the compact form
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return r, &DecodeError{Key: key, Err: err}
	}
	payload = compact.Bytes()
	if sum != "" && checksum(payload) != sum {
		return r, &DecodeError{Key: key, Err: errors.New("checksum mismatch")}
	}
	if err := json.Unmarshal(payload, &r); err != nil {
		return types.ScanResult{}, &DecodeError{Key: key, Err: err}
	}
	if err := r.Validate(); err != nil {
		return types.ScanResult{}, &DecodeError{Key: key, Err: err}
	}
	return r, nil
}
