package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// KVRepository is the persistence collaborator for the wallet core: a
// blob-valued key-value store backed by a single Postgres table.
type KVRepository struct {
	store *Store
}

// NewKVRepository creates a new KVRepository
func NewKVRepository(store *Store) *KVRepository {
	return &KVRepository{store: store}
}

// EnsureSchema creates the kv_entries table if it does not exist yet.
func (r *KVRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        text PRIMARY KEY,
			value      bytea NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`

	if _, err := r.store.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create kv_entries table: %w", err)
	}

	return nil
}

// Get retrieves the value stored under key. The second return value
// reports whether the key exists.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
		SELECT value
		FROM kv_entries
		WHERE key = $1
	`

	var value []byte
	err := r.store.pool.QueryRow(ctx, query, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get kv entry: %w", err)
	}

	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()
	`

	if _, err := r.store.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}

	return nil
}
