package authlink

import "sync"

// TokenStore holds the current access token for a running client.
// It holds state but does not decide anything about it.
type TokenStore interface {
	// Get returns the current token, or "" if there is none.
	Get() string

	// Set replaces the current token. "" clears it.
	Set(token string)
}

// MemoryTokenStore is a process-local TokenStore. Nothing is persisted.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Get returns the current token
func (s *MemoryTokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the current token. Last write wins.
func (s *MemoryTokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}
