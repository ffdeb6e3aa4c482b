package store

import (
	"sync"

	"github.com/shieldscan/shieldscan/internal/types"
)

// MemoryStore keeps the serialized record in process memory. It round-trips
// through the same encoding as the persistent backends.
type MemoryStore struct {
	mu      sync.Mutex
	payload []byte
	sum     string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Get() (types.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payload == nil {
		return types.ScanResult{}, ErrNotFound
	}
	return decodeResult(DefaultKey, s.payload, s.sum)
}

func (s *MemoryStore) Set(r types.ScanResult) error {
	payload, sum, err := encodeResult(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.payload, s.sum = payload, sum
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.payload, s.sum = nil, ""
	s.mu.Unlock()
	return nil
}

// SetRaw stores bytes as-is, bypassing encoding. Used to simulate records
// written by another client version.
func (s *MemoryStore) SetRaw(payload []byte) {
	s.mu.Lock()
	s.payload, s.sum = append([]byte(nil), payload...), ""
	s.mu.Unlock()
}
