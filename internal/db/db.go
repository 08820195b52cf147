package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/juggle/internal/log"
)

// Connect opens a pgx pool for dsn, verifies it with a ping and makes sure the
// tables used by the realtime store exist.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info("Connected to Postgres successfully")

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the node table and its prefix index when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureNodesTable(ctx, pool); err != nil {
		return err
	}
	return ensureNodesPrefixIndex(ctx, pool)
}

// ensureNodesTable creates realtime_nodes, one row per leaf of the tree
func ensureNodesTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS realtime_nodes (
            path TEXT PRIMARY KEY,
            value JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`)
	if err != nil {
		return fmt.Errorf("failed to ensure realtime_nodes table: %w", err)
	}
	return nil
}

// ensureNodesPrefixIndex lets subtree scans use the index for prefix matches
func ensureNodesPrefixIndex(ctx context.Context, pool *pgxpool.Pool) error {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM pg_indexes
            WHERE schemaname = 'public' AND tablename = 'realtime_nodes' AND indexname = 'realtime_nodes_path_prefix_idx'
        )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if exists {
		return nil
	}
	_, err = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS realtime_nodes_path_prefix_idx ON realtime_nodes (path text_pattern_ops)`)
	if err != nil {
		return fmt.Errorf("failed to create path prefix index: %w", err)
	}
	log.Info("Created realtime_nodes path prefix index")
	return nil
}
