package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errClosed = errors.New("realtime: store closed")

// MemoryStore keeps the tree as a flat map of leaf paths. It is used by tests
// and by single process development setups.
type MemoryStore struct {
	mu     sync.RWMutex
	leaves map[string]any
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leaves: map[string]any{}}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (any, error) {
	path, err := Clean(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	v := assemble(path, s.leaves)
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *MemoryStore) Update(ctx context.Context, values map[string]any) error {
	prepared, paths, err := prepareUpdate(values)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, p := range paths {
		s.apply(p, prepared[p])
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

// Transaction holds the write lock while fn runs, so fn must not call back
// into the store.
func (s *MemoryStore) Transaction(ctx context.Context, path string, fn TxFunc) error {
	path, err := Clean(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	next, err := fn(assemble(path, s.leaves))
	if err != nil {
		return err
	}
	prepared, _, err := prepareUpdate(map[string]any{path: next})
	if err != nil {
		return err
	}
	s.apply(path, prepared[path])
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// apply replaces the subtree at path with leaves. Ancestor leaves are removed
// so a scalar can be replaced by a collection.
func (s *MemoryStore) apply(path string, leaves map[string]any) {
	prefix := childPrefix(path)
	for k := range s.leaves {
		if k == path || strings.HasPrefix(k, prefix) {
			delete(s.leaves, k)
		}
	}
	for _, a := range ancestors(path) {
		delete(s.leaves, a)
	}
	for k, v := range leaves {
		s.leaves[k] = v
	}
}
