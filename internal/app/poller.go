// Package app holds the poll loop bridging the persistence gateway and the
// broadcaster.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/domain"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/metrics"
)

const tickTimeout = 2 * time.Second

// LocationPublisher is the broadcaster-side surface the poller needs.
type LocationPublisher interface {
	PublishLocation(sample domain.LocationSample)
}

// Poller asks the store for the latest location on a fixed interval and
// hands it to the broadcaster. No dedup against the previous sample:
// duplicate broadcasts are tolerated, clients treat position-set as
// idempotent. Polling trades up to one interval of staleness for full
// decoupling from store-side notification mechanisms.
type Poller struct {
	store     domain.LocationStore
	publisher LocationPublisher
	interval  time.Duration
	clock     clockwork.Clock
}

func NewPoller(store domain.LocationStore, publisher LocationPublisher, interval time.Duration, clock clockwork.Clock) *Poller {
	return &Poller{
		store:     store,
		publisher: publisher,
		interval:  interval,
		clock:     clock,
	}
}

// Run starts the poll loop. It blocks until ctx is cancelled; a failed tick
// is logged and skipped, never fatal.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	sample, err := p.store.Latest(tickCtx)
	if err != nil {
		slog.Warn("Poller: latest location query failed, skipping tick", "error", err)
		metrics.PollFailuresTotal.Inc()
		return
	}
	if sample == nil {
		return
	}

	p.publisher.PublishLocation(*sample)
	metrics.LocationsBroadcastTotal.Inc()
}
