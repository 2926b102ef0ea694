// Package revocation records revoked token ids until the tokens would have
// expired anyway.
package revocation

import (
	"context"
	"time"
)

// Registry is safe for concurrent use. Revoke is idempotent: the first call
// for an id reports true, later calls report false and change nothing.
type Registry interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Remove(ctx context.Context, tokenID string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
