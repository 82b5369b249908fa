package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/raine/cheapeats-bot/internal/observability"
	"github.com/raine/cheapeats-bot/internal/storage"
)

// DefaultPriceCacheTTL is how long a menu price lookup stays valid.
const DefaultPriceCacheTTL = 7 * 24 * time.Hour

type priceCacheStore interface {
	GetPriceCache(key string) (*storage.PriceCacheEntry, error)
	SetPriceCache(key string, entry *storage.PriceCacheEntry) error
}

// CachedVision wraps a VisionProvider with SQLite caching. Concurrent
// lookups for the same dish and photo share one model call.
type CachedVision struct {
	inner   VisionProvider
	store   priceCacheStore
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewCachedVision creates a cached vision provider. A nil store disables caching.
func NewCachedVision(inner VisionProvider, store priceCacheStore, ttl time.Duration, metrics *observability.Metrics) *CachedVision {
	if ttl <= 0 {
		ttl = DefaultPriceCacheTTL
	}
	return &CachedVision{
		inner:   inner,
		store:   store,
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

// WithClock replaces the clock used for expiry. Intended for tests.
func (c *CachedVision) WithClock(clock clockwork.Clock) *CachedVision {
	c.clock = clock
	return c
}

// priceCacheKey hashes the normalized dish name and the image bytes.
// The dish length is written first to prevent boundary collisions.
func priceCacheKey(dish string, image []byte) string {
	d := strings.ToLower(strings.TrimSpace(dish))
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(d)))
	h.Write([]byte(d))
	h.Write(image)
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractPrice implements VisionProvider with caching.
func (c *CachedVision) ExtractPrice(ctx context.Context, dish string, image []byte, mimeType string) (*string, error) {
	key := priceCacheKey(dish, image)

	if price, ok := c.lookup(key); ok {
		return price, nil
	}
	c.count("miss")

	v, err, shared := c.group.Do(key, func() (any, error) {
		price, err := c.inner.ExtractPrice(ctx, dish, image, mimeType)
		if err != nil {
			return nil, err
		}
		c.save(key, price)
		return price, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("hash", key[:16]).Msg("shared in-flight price lookup")
	}

	price, _ := v.(*string)
	return copyPrice(price), nil
}

func (c *CachedVision) lookup(key string) (*string, bool) {
	if c.store == nil {
		return nil, false
	}
	cached, err := c.store.GetPriceCache(key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check price cache")
		return nil, false
	}
	if cached == nil {
		return nil, false
	}
	if c.clock.Since(cached.CreatedAt) > c.ttl {
		log.Debug().Str("hash", key[:16]).Time("createdAt", cached.CreatedAt).Msg("price cache entry expired")
		return nil, false
	}

	c.count("hit")
	log.Debug().Str("hash", key[:16]).Msg("price cache hit")
	return copyPrice(cached.Price), true
}

func (c *CachedVision) save(key string, price *string) {
	if c.store == nil {
		return
	}
	entry := &storage.PriceCacheEntry{Price: copyPrice(price), CreatedAt: c.clock.Now()}
	if err := c.store.SetPriceCache(key, entry); err != nil {
		log.Warn().Err(err).Msg("failed to cache price result")
		return
	}
	log.Debug().Str("hash", key[:16]).Msg("cached price result")
}

func (c *CachedVision) count(result string) {
	if c.metrics != nil {
		c.metrics.PriceCache.WithLabelValues(result).Inc()
	}
}

func copyPrice(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
