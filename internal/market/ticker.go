package market

import (
	"context"
	"log/slog"
	"time"
)

// Ticker periodically random-walks the provider's prices.
type Ticker struct {
	interval time.Duration
	provider *Provider
	logger   *slog.Logger
}

// NewTicker creates a Ticker with the given interval.
func NewTicker(interval time.Duration, provider *Provider, logger *slog.Logger) *Ticker {
	return &Ticker{
		interval: interval,
		provider: provider,
		logger:   logger,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval. It stops when ctx is cancelled.
func (t *Ticker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.logger.Debug("quote ticker stopped")
				return
			case now := <-ticker.C:
				t.provider.Tick(now)
			}
		}
	}()
}
