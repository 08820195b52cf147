package realtime

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements Store on the realtime_nodes table, one row per
// leaf. Multi-path updates run in a single SQL transaction and Transaction
// serializes writers with an advisory lock keyed by the path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool whose schema has been prepared by db.Connect.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (any, error) {
	path, err := Clean(path)
	if err != nil {
		return nil, err
	}
	leaves, err := pgReadSubtree(ctx, s.pool, path)
	if err != nil {
		return nil, err
	}
	v := assemble(path, leaves)
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

func (s *PostgresStore) Update(ctx context.Context, values map[string]any) error {
	prepared, paths, err := prepareUpdate(values)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, p := range paths {
			if err := pgWriteSubtree(ctx, tx, p, prepared[p]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

func (s *PostgresStore) Transaction(ctx context.Context, path string, fn TxFunc) error {
	path, err := Clean(path)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, path); err != nil {
			return fmt.Errorf("lock %s: %w", path, err)
		}
		leaves, err := pgReadSubtree(ctx, tx, path)
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
		return pgWriteSubtree(ctx, tx, path, prepared[path])
	})
}

func pgReadSubtree(ctx context.Context, q querier, path string) (map[string]any, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if path == "" {
		rows, err = q.Query(ctx, `SELECT path, value::text FROM realtime_nodes`)
	} else {
		rows, err = q.Query(ctx, `
            SELECT path, value::text FROM realtime_nodes
            WHERE path = $1 OR starts_with(path, $2)`, path, childPrefix(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer rows.Close()

	leaves := map[string]any{}
	for rows.Next() {
		var (
			key  string
			data string
		)
		if err := rows.Scan(&key, &data); err != nil {
			return nil, err
		}
		v, err := decodeLeaf([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		leaves[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A leaf at path shadows anything left below it.
	if v, ok := leaves[path]; ok && path != "" {
		return map[string]any{path: v}, nil
	}
	return leaves, nil
}

func pgWriteSubtree(ctx context.Context, q querier, path string, leaves map[string]any) error {
	var err error
	if path == "" {
		_, err = q.Exec(ctx, `DELETE FROM realtime_nodes`)
	} else {
		_, err = q.Exec(ctx, `
            DELETE FROM realtime_nodes
            WHERE path = $1 OR starts_with(path, $2) OR path = ANY($3)`,
			path, childPrefix(path), ancestors(path))
	}
	if err != nil {
		return fmt.Errorf("clear %s: %w", path, err)
	}
	if len(leaves) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for k, v := range leaves {
		data, err := encodeLeaf(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		batch.Queue(`INSERT INTO realtime_nodes (path, value, updated_at) VALUES ($1, $2::jsonb, NOW())`, k, string(data))
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
