package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/geminiassist/geminiassist/internal/logging"
)

// Reaper evicts idle sessions on a fixed interval. It is started explicitly
// at process start rather than lazily on first use.
type Reaper struct {
	store    *Store
	interval time.Duration
	ttl      time.Duration
	log      zerolog.Logger
}

// NewReaper creates a reaper that scans the store every interval and evicts
// sessions idle longer than ttl.
func NewReaper(store *Store, interval, ttl time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		interval: interval,
		ttl:      ttl,
		log:      logging.Component("reaper"),
	}
}

// Run scans until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.log.Debug().
		Dur("interval", r.interval).
		Dur("ttl", r.ttl).
		Msg("reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("reaper stopped")
			return
		case <-ticker.C:
			r.store.EvictExpired(ctx, r.ttl)
		}
	}
}
