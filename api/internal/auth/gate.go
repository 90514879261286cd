// Package auth holds the shared-secret credential on the client side and
// validates it on the server side.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"calorie-lens/api/internal/analysis"
)

const (
	// HeaderName carries the credential on every analysis request.
	HeaderName = "x-app-password"
	// StorageKey is the fixed key the credential is persisted under.
	StorageKey = "app_password"
)

// Store is durable key/value storage for client state.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Gate owns the client credential. It reads through to the store once and
// keeps the value in memory afterwards.
type Gate struct {
	store Store

	mu     sync.RWMutex
	value  string
	loaded bool
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

func (g *Gate) HasCredential(ctx context.Context) (bool, error) {
	v, err := g.Credential(ctx)
	if err != nil {
		return false, err
	}
	return v != "", nil
}

// Credential returns the stored credential, or "" when none was saved.
func (g *Gate) Credential(ctx context.Context) (string, error) {
	g.mu.RLock()
	if g.loaded {
		v := g.value
		g.mu.RUnlock()
		return v, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loaded {
		return g.value, nil
	}
	v, _, err := g.store.Get(ctx, StorageKey)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	g.value, g.loaded = v, true
	return v, nil
}

// SetCredential persists value verbatim. Blank values are rejected.
func (g *Gate) SetCredential(ctx context.Context, value string) error {
	if strings.TrimSpace(value) == "" {
		return analysis.ErrEmptyCredential
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Set(ctx, StorageKey, value); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	g.value, g.loaded = value, true
	return nil
}

// AttachHeader sets the credential header on req exactly as stored.
func (g *Gate) AttachHeader(ctx context.Context, req *http.Request) error {
	v, err := g.Credential(ctx)
	if err != nil {
		return err
	}
	if v == "" {
		return analysis.ErrUnauthorized
	}
	req.Header.Set(HeaderName, v)
	return nil
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
