package smsman

import (
	"sync"
	"time"

	"github.com/Fi44er/otp_store/internal/metrics"
)

// priceCache хранит цены по странам до истечения ttl.
type priceCache struct {
	mu      sync.Mutex // Защищает entries
	ttl     time.Duration
	entries map[int]priceEntry
	now     func() time.Time
}

type priceEntry struct {
	prices    map[int]price
	expiresAt time.Time
}

func newPriceCache(ttl time.Duration) *priceCache {
	return &priceCache{
		ttl:     ttl,
		entries: make(map[int]priceEntry),
		now:     time.Now,
	}
}

func (c *priceCache) get(countryID int) (map[int]price, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[countryID]
	hit := ok && c.now().Before(entry.expiresAt)
	metrics.RecordPriceCacheLookup(hit)
	if !hit {
		return nil, false
	}
	return entry.prices, true
}

func (c *priceCache) put(countryID int, prices map[int]price) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[countryID] = priceEntry{prices: prices, expiresAt: c.now().Add(c.ttl)}
}

// nameCache хранит названия приложений; список общий для всех стран.
type nameCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	names     map[int]string
	expiresAt time.Time
	now       func() time.Time
}

func newNameCache(ttl time.Duration) *nameCache {
	return &nameCache{ttl: ttl, now: time.Now}
}

func (c *nameCache) get() (map[int]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.names == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.names, true
}

func (c *nameCache) put(names map[int]string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names, c.expiresAt = names, c.now().Add(c.ttl)
}
