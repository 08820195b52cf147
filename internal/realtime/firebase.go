package realtime

import (
	"context"
	"fmt"

	fbdb "firebase.google.com/go/v4/db"
)

// FirebaseStore implements Store on a hosted Firebase Realtime Database.
// Multi-path updates map onto a root level update, which the database
// applies atomically.
type FirebaseStore struct {
	client *fbdb.Client
}

// NewFirebaseStore wraps an initialised database client.
func NewFirebaseStore(client *fbdb.Client) *FirebaseStore {
	return &FirebaseStore{client: client}
}

func (s *FirebaseStore) ref(path string) *fbdb.Ref {
	return s.client.NewRef("/" + path)
}

func (s *FirebaseStore) Get(ctx context.Context, path string) (any, error) {
	path, err := Clean(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := s.ref(path).Get(ctx, &v); err != nil {
		return nil, fmt.Errorf("firebase get %s: %w", path, err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *FirebaseStore) Set(ctx context.Context, path string, value any) error {
	path, err := Clean(path)
	if err != nil {
		return err
	}
	if value == nil {
		return s.Delete(ctx, path)
	}
	if err := s.ref(path).Set(ctx, value); err != nil {
		return fmt.Errorf("firebase set %s: %w", path, err)
	}
	return nil
}

func (s *FirebaseStore) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	// Validation only; the client encodes the original values itself.
	if _, _, err := prepareUpdate(values); err != nil {
		return err
	}
	cleaned := make(map[string]interface{}, len(values))
	for raw, v := range values {
		path, _ := Clean(raw)
		cleaned[path] = v
	}
	if err := s.client.NewRef("/").Update(ctx, cleaned); err != nil {
		return fmt.Errorf("firebase update: %w", err)
	}
	return nil
}

func (s *FirebaseStore) Delete(ctx context.Context, path string) error {
	path, err := Clean(path)
	if err != nil {
		return err
	}
	if err := s.ref(path).Delete(ctx); err != nil {
		return fmt.Errorf("firebase delete %s: %w", path, err)
	}
	return nil
}

// Transaction uses the database's optimistic transactions, so fn may run
// more than once and must be free of side effects.
func (s *FirebaseStore) Transaction(ctx context.Context, path string, fn TxFunc) error {
	path, err := Clean(path)
	if err != nil {
		return err
	}
	return s.ref(path).Transaction(ctx, func(tn fbdb.TransactionNode) (interface{}, error) {
		var current any
		if err := tn.Unmarshal(&current); err != nil {
			return nil, err
		}
		return fn(current)
	})
}

// Close is a no-op; the Firebase app owns the underlying HTTP client.
func (s *FirebaseStore) Close() error {
	return nil
}
