// Package snapshot holds the live, in-memory view the polling manager
// writes to and the HTTP surface reads from: a concurrent price cache
// keyed by provider:symbol and a derived per-provider tick map.
package snapshot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/haloboard/marketfeed/internal/domain"
)

// Key formats the cache key for a provider/symbol pair. Exported so the
// HTTP layer can build the same key a cache entry was stored under.
func Key(providerID, symbol string) string {
	return providerID + ":" + symbol
}

// SplitKey reverses Key, splitting on the first ':' only (a DEX symbol may
// itself contain colons).
func SplitKey(key string) (providerID, symbol string, ok bool) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// Entry pairs a cache record with the key it's stored under, the shape the
// HTTP "all prices" listing needs.
type Entry struct {
	ProviderID string
	Symbol     string
	Asset      domain.AssetData
}

// Cache is the concurrent provider:symbol -> AssetData map plus the
// derived provider -> PollTick map, grounded on spec.md §4.2's "State
// owned" list. Readers take a read lock; writers take a write lock; hold
// time is bounded by the size of one batch, never by I/O.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]domain.AssetData
	ticks  map[string]domain.PollTick
}

// New builds an empty Cache.
func New() *Cache {
	return &Cache{
		prices: make(map[string]domain.AssetData),
		ticks:  make(map[string]domain.PollTick),
	}
}

// PutBatch writes every asset in one fetch batch under its provider:symbol
// key. One write-lock acquisition per batch, not per asset.
func (c *Cache) PutBatch(providerID string, assets []domain.AssetData) {
	if len(assets) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range assets {
		c.prices[Key(providerID, a.Symbol)] = a
	}
}

// RecordTick stores the latest beat record for a provider.
func (c *Cache) RecordTick(tick domain.PollTick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks[tick.ProviderID] = tick
}

// Get returns the cached asset for (providerID, symbol).
func (c *Cache) Get(providerID, symbol string) (domain.AssetData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.prices[Key(providerID, symbol)]
	return a, ok
}

// All drains the full cache into a stable slice of Entry, splitting each
// key back into (provider, symbol) per spec.md §4.5.
func (c *Cache) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.prices))
	for key, asset := range c.prices {
		providerID, symbol, ok := SplitKey(key)
		if !ok {
			continue
		}
		out = append(out, Entry{ProviderID: providerID, Symbol: symbol, Asset: asset})
	}
	return out
}

// Size returns the number of cached price entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// Ticks returns a snapshot of the provider -> last-tick map.
func (c *Cache) Ticks() map[string]domain.PollTick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.PollTick, len(c.ticks))
	for k, v := range c.ticks {
		out[k] = v
	}
	return out
}

// ActiveProviders returns the provider ids with a recorded tick, i.e. the
// providers the current generation has at least attempted to poll once.
func (c *Cache) ActiveProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.ticks))
	for id := range c.ticks {
		out = append(out, id)
	}
	return out
}

// PruneToGroups keeps only cache keys and tick entries belonging to the
// given (providerID -> symbol-set) assignment, implementing the "cache
// scope"/"tick scope" invariants (spec.md §8 properties 1-2): any key not
// in the current scheduling generation's groups is dropped within the
// iteration that computed them.
func (c *Cache) PruneToGroups(groups map[string]map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.prices {
		providerID, symbol, ok := SplitKey(key)
		if !ok {
			delete(c.prices, key)
			continue
		}
		symbols, active := groups[providerID]
		if !active {
			delete(c.prices, key)
			continue
		}
		if _, wanted := symbols[symbol]; !wanted {
			delete(c.prices, key)
		}
	}

	for providerID := range c.ticks {
		if _, active := groups[providerID]; !active {
			delete(c.ticks, providerID)
		}
	}
}

// Clear empties both maps, used when the effective visible set collapses
// to nothing (spec.md §4.2 step 1 / §8 property 3).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices = make(map[string]domain.AssetData)
	c.ticks = make(map[string]domain.PollTick)
}

// String renders a short debug summary, used only in log lines.
func (c *Cache) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("snapshot.Cache{prices=%d ticks=%d}", len(c.prices), len(c.ticks))
}
