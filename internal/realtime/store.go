package realtime

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when nothing is stored at or below a path.
	ErrNotFound = errors.New("realtime: not found")
	// ErrInvalidPath is returned for malformed paths and overlapping updates.
	ErrInvalidPath = errors.New("realtime: invalid path")
)

// TxFunc receives the current value at a path (nil when absent) and returns
// the value to store. Returning nil deletes the path. Returning an error
// aborts the transaction without writing and the error is passed back to
// the caller of Transaction.
type TxFunc func(current any) (any, error)

// Store is a hierarchical JSON tree addressed by slash separated paths.
//
// Values are normalized to JSON shapes on write, so readers always see
// map[string]any, string, float64, bool or nil. Writing nil or an empty map
// removes the path.
type Store interface {
	// Get returns the value at path or ErrNotFound.
	Get(ctx context.Context, path string) (any, error)
	// Set replaces the value at path, including everything below it.
	Set(ctx context.Context, path string, value any) error
	// Update applies several Set operations as one atomic write. No path may
	// be an ancestor of another.
	Update(ctx context.Context, values map[string]any) error
	// Delete removes path and everything below it.
	Delete(ctx context.Context, path string) error
	// Transaction runs a read-modify-write on a single path. Concurrent
	// transactions on the same path are serialized.
	Transaction(ctx context.Context, path string, fn TxFunc) error
	Close() error
}

// Pinger is implemented by stores that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Children returns the immediate children of path as a map. A missing path
// yields an empty map rather than ErrNotFound.
func Children(ctx context.Context, s Store, path string) (map[string]any, error) {
	v, err := s.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("realtime: %s is not a collection", path)
	}
	return m, nil
}

// Exists reports whether anything is stored at path.
func Exists(ctx context.Context, s Store, path string) (bool, error) {
	_, err := s.Get(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
