package session

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = time.Minute

// StartOfferSweeper runs a background goroutine that periodically discards
// pending offers past their confirmation window, so a long-dormant "yes"
// can never redeem a stale offer. The engine also drops expired offers
// lazily; the sweeper just keeps dormant sessions tidy.
func StartOfferSweeper(ctx context.Context, store *Store) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Offer sweeper started", "interval", sweepInterval)

		for {
			select {
			case <-ticker.C:
				if cleared := store.ClearExpiredOffers(time.Now()); cleared > 0 {
					slog.Info("Offer sweeper cleared expired offers", "count", cleared)
				}
			case <-ctx.Done():
				slog.Info("Offer sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
