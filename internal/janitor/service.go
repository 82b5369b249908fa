package janitor

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Pruner deletes cache rows created before a cutoff.
type Pruner interface {
	PrunePriceCache(olderThan time.Time) (int64, error)
}

// Service periodically removes expired menu price cache entries.
type Service struct {
	store    Pruner
	ttl      time.Duration
	interval time.Duration
	clock    clockwork.Clock
}

// NewService prunes entries older than ttl, once at start and then every ttl.
func NewService(store Pruner, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		ttl:      ttl,
		interval: ttl,
		clock:    clockwork.NewRealClock(),
	}
}

func (s *Service) WithClock(clock clockwork.Clock) *Service {
	s.clock = clock
	return s
}

// WithInterval overrides how often pruning runs.
func (s *Service) WithInterval(interval time.Duration) *Service {
	s.interval = interval
	return s
}

// Run blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("starting price cache janitor")
	s.prune()

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("price cache janitor stopped")
			return
		case <-ticker.Chan():
			s.prune()
		}
	}
}

func (s *Service) prune() {
	count, err := s.store.PrunePriceCache(s.clock.Now().Add(-s.ttl))
	if err != nil {
		log.Error().Err(err).Msg("failed to prune price cache")
		return
	}
	if count > 0 {
		log.Info().Int64("pruned", count).Msg("pruned expired price cache entries")
	}
}
