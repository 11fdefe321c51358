package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

const queryTimeout = 3 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mirror_records (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		position   BIGINT NOT NULL,
		data       JSONB NOT NULL,
		PRIMARY KEY (collection, key)
	)`,
	`CREATE TABLE IF NOT EXISTS mirror_metadata (
		collection   TEXT PRIMARY KEY,
		last_sync    TIMESTAMPTZ NOT NULL,
		record_count INTEGER NOT NULL
	)`,
}

// PostgresCollection stores records as JSONB rows ordered by a position column.
type PostgresCollection[T any] struct {
	db    *sql.DB
	name  string
	key   func(T) string
	order Order
}

func NewPostgresCollection[T any](db *sql.DB, name string, key func(T) string, order Order) *PostgresCollection[T] {
	return &PostgresCollection[T]{db: db, name: name, key: key, order: order}
}

// EnsureSchema creates the mirror tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create mirror schema: %w", err)
		}
	}
	return nil
}

// NewPostgres creates a mirror persisted in Postgres, creating its tables first.
func NewPostgres(ctx context.Context, db *sql.DB) (*Mirror, error) {
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return New(
		NewPostgresCollection(db, ProductsCollection, ProductKey, Append),
		NewPostgresCollection(db, BillsCollection, BillKey, Prepend),
	), nil
}

func (c *PostgresCollection[T]) Name() string {
	return c.name
}

func (c *PostgresCollection[T]) ReplaceAll(ctx context.Context, records []T) error {
	keys, byKey := dedupe(records, c.key)

	ctx, cancel := context.WithTimeout(ctx, 10*queryTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace of %s: %w", c.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mirror_records WHERE collection = $1`, c.name); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c.name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO mirror_records (collection, key, position, data) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", c.name, err)
	}
	defer stmt.Close()

	for i, k := range keys {
		data, err := json.Marshal(byKey[k])
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", c.name, k, err)
		}
		if _, err := stmt.ExecContext(ctx, c.name, k, i, data); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", c.name, k, err)
		}
	}

	return tx.Commit()
}

func (c *PostgresCollection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM mirror_records WHERE collection = $1 AND key = $2`, c.name, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var r T
	if err := json.Unmarshal(data, &r); err != nil {
		return zero, false, fmt.Errorf("decode %s/%s: %w", c.name, key, err)
	}
	return r, true, nil
}

func (c *PostgresCollection[T]) All(ctx context.Context) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT data FROM mirror_records WHERE collection = $1 ORDER BY position`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r T
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PostgresCollection[T]) Put(ctx context.Context, record T) error {
	k := c.key(record)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, k, err)
	}

	position := `(SELECT COALESCE(MAX(position), -1) + 1 FROM mirror_records WHERE collection = $1)`
	if c.order == Prepend {
		position = `(SELECT COALESCE(MIN(position), 1) - 1 FROM mirror_records WHERE collection = $1)`
	}
	query := `INSERT INTO mirror_records (collection, key, position, data) VALUES ($1, $2, ` + position + `, $3)
		ON CONFLICT (collection, key) DO UPDATE SET data = EXCLUDED.data`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, query, c.name, k, data); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", c.name, k, err)
	}
	return nil
}

func (c *PostgresCollection[T]) Len(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mirror_records WHERE collection = $1`, c.name).Scan(&n)
	return n, err
}

func (c *PostgresCollection[T]) Meta(ctx context.Context) (models.SyncMetadata, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var meta models.SyncMetadata
	err := c.db.QueryRowContext(ctx, `SELECT last_sync, record_count FROM mirror_metadata WHERE collection = $1`, c.name).
		Scan(&meta.LastSync, &meta.RecordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncMetadata{}, false, nil
	}
	if err != nil {
		return models.SyncMetadata{}, false, err
	}
	return meta, true, nil
}

func (c *PostgresCollection[T]) SetMeta(ctx context.Context, meta models.SyncMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `INSERT INTO mirror_metadata (collection, last_sync, record_count) VALUES ($1, $2, $3)
		ON CONFLICT (collection) DO UPDATE SET last_sync = EXCLUDED.last_sync, record_count = EXCLUDED.record_count`,
		c.name, meta.LastSync.UTC(), meta.RecordCount)
	return err
}

// Clear deletes the collection's rows and metadata.
func (c *PostgresCollection[T]) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM mirror_records WHERE collection = $1`, c.name); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM mirror_metadata WHERE collection = $1`, c.name)
	return err
}
