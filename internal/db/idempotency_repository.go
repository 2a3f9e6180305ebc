package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepository implements domain.IdempotencyRepository using
// PostgreSQL. Records are write-once: ON CONFLICT DO NOTHING keeps the first
// saved response even when two writers race on the same key.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository creates a new IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Get returns the saved response payload for the key.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := queryTarget(ctx, r.pool).QueryRow(ctx,
		`SELECT response FROM idempotency_records WHERE key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return payload, true, nil
}

// Put saves the response payload the first time a key is seen.
func (r *IdempotencyRepository) Put(ctx context.Context, key string, payload []byte) error {
	_, err := queryTarget(ctx, r.pool).Exec(ctx,
		`INSERT INTO idempotency_records (key, response, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}
