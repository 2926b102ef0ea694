package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRegistry struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool, now: time.Now}
}

func (r *PostgresRegistry) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (token_id) DO NOTHING`,
		tokenID, expiresAt.UTC(), r.now().UTC())
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = $1 AND expires_at > $2)`,
		tokenID, r.now().UTC()).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (r *PostgresRegistry) Remove(ctx context.Context, tokenID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("remove revoked token: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired revocations: %w", err)
	}
	return tag.RowsAffected(), nil
}
