package realtime

import (
	"bytes"
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketNodes = []byte("nodes")

// BoltStore implements Store on a single BoltDB file. Every leaf is a key in
// the nodes bucket holding its JSON encoded value, so subtree reads and
// deletes are cursor prefix scans.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketNodes); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketNodes, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(ctx context.Context, path string) (any, error) {
	path, err := Clean(path)
	if err != nil {
		return nil, err
	}
	var leaves map[string]any
	err = s.db.View(func(tx *bolt.Tx) error {
		leaves, err = readSubtree(tx.Bucket(bucketNodes), path)
		return err
	})
	if err != nil {
		return nil, err
	}
	v := assemble(path, leaves)
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *BoltStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *BoltStore) Update(ctx context.Context, values map[string]any) error {
	prepared, paths, err := prepareUpdate(values)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		for _, p := range paths {
			if err := writeSubtree(b, p, prepared[p]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

// Transaction runs fn inside a bolt write transaction. Bolt allows a single
// writer at a time, which gives the required serialization.
func (s *BoltStore) Transaction(ctx context.Context, path string, fn TxFunc) error {
	path, err := Clean(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		leaves, err := readSubtree(b, path)
		if err != nil {
			return err
		}
		next, err := fn(assemble(path, leaves))
		if err != nil {
			return err
		}
		prepared, _, err := prepareUpdate(map[string]any{path: next})
		if err != nil {
			return err
		}
		return writeSubtree(b, path, prepared[path])
	})
}

func readSubtree(b *bolt.Bucket, path string) (map[string]any, error) {
	leaves := map[string]any{}
	if path != "" {
		if data := b.Get([]byte(path)); data != nil {
			v, err := decodeLeaf(data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
			leaves[path] = v
			return leaves, nil
		}
	}

	prefix := []byte(childPrefix(path))
	c := b.Cursor()
	for k, data := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, data = c.Next() {
		v, err := decodeLeaf(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		leaves[string(k)] = v
	}
	return leaves, nil
}

func writeSubtree(b *bolt.Bucket, path string, leaves map[string]any) error {
	// Collect first; deleting while iterating a bolt cursor skips keys.
	var stale [][]byte
	if path != "" {
		stale = append(stale, []byte(path))
	}
	prefix := []byte(childPrefix(path))
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, a := range ancestors(path) {
		stale = append(stale, []byte(a))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}

	for k, v := range leaves {
		data, err := encodeLeaf(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		if err := b.Put([]byte(k), data); err != nil {
			return err
		}
	}
	return nil
}
