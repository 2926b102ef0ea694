package revocation

import (
	"context"
	"log/slog"
	"time"
)

// StartPurgeTicker removes expired entries once on start and then every
// interval until ctx is cancelled.
func StartPurgeTicker(ctx context.Context, registry Registry, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	purge(ctx, registry)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge(ctx, registry)
		}
	}
}

func purge(ctx context.Context, registry Registry) {
	n, err := registry.PurgeExpired(ctx, time.Now())
	if err != nil {
		slog.Warn("revocation purge failed", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("revocation entries purged", "count", n)
	}
}
