// Package analytics turns consumed click events into durable rows and
// real-time counters.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkcut/linkcut/internal/entity"
)

// ClickStore persists click events.
type ClickStore interface {
	Save(ctx context.Context, event *entity.ClickEvent) error
}

// ClickCounters maintains the live click counters.
type ClickCounters interface {
	Increment(ctx context.Context, shortCode string, clickedAt time.Time) error
}

// Aggregator handles consumed click events: each event becomes a click row
// and bumps the counters. A failed row insert is returned so the consumer
// leaves the message uncommitted; a failed counter bump is only logged, since
// counters are derivable from the rows.
type Aggregator struct {
	store    ClickStore
	counters ClickCounters
	logger   *slog.Logger
}

func NewAggregator(store ClickStore, counters ClickCounters, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		counters: counters,
		logger:   logger,
	}
}

func (a *Aggregator) HandleClick(ctx context.Context, event *entity.ClickEvent) error {
	const op = "analytics.Aggregator.HandleClick"

	if err := a.store.Save(ctx, event); err != nil {
		return fmt.Errorf("%s: failed to save click event: %w", op, err)
	}

	if err := a.counters.Increment(ctx, event.ShortCode, event.ClickedAt); err != nil {
		a.logger.Warn("failed to increment click counters",
			slog.String("short_code", event.ShortCode),
			slog.Any("err", err))
	}

	return nil
}
