package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. Used in tests and for
// single-node development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Read(ctx context.Context, name string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	body, ok := s.docs[name]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	return true, decode(name, body, dst)
}

func (s *MemoryStore) Write(ctx context.Context, name string, src any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := encode(name, src)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[name] = body
	s.mu.Unlock()

	return nil
}

// Raw returns the stored bytes of a document, for tests that seed or inspect raw JSON.
func (s *MemoryStore) Raw(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.docs[name]
	return body, ok
}

// SetRaw stores body verbatim without validation.
func (s *MemoryStore) SetRaw(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = body
}
