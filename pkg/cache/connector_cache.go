package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// ConnectorDiscoverer resolves the connector URLs a BPN publishes. It is
// called with no cache lock held, since connector discovery is a network
// round trip against the dataspace discovery service.
type ConnectorDiscoverer interface {
	FindConnectorsByBPN(ctx context.Context, bpn types.BPN) ([]types.ConnectorURL, error)
}

// ConnectorCache holds the last-known connector list for each BPN, keyed
// by BPN behind a single sync.RWMutex.
type ConnectorCache struct {
	mu         sync.RWMutex
	entries    map[types.BPN]types.ConnectorCacheEntry
	ttl        time.Duration
	discoverer ConnectorDiscoverer
	broker     *events.Broker
}

// Config configures a ConnectorCache.
type Config struct {
	TTL time.Duration
}

// DefaultTTL is used when Config.TTL is the zero value.
const DefaultTTL = 60 * time.Minute

// New creates a ConnectorCache backed by discoverer, publishing cache
// mutation events on broker (broker may be nil, in which case events are
// dropped).
func New(cfg Config, discoverer ConnectorDiscoverer, broker *events.Broker) *ConnectorCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ConnectorCache{
		entries:    make(map[types.BPN]types.ConnectorCacheEntry),
		ttl:        ttl,
		discoverer: discoverer,
		broker:     broker,
	}
}

// GetConnectors returns the connector URLs known for bpn, discovering and
// caching them if the entry is missing, expired, or empty. A discovery
// result of zero connectors is returned as-is without installing a
// poison cache entry, so the next call retries discovery.
func (c *ConnectorCache) GetConnectors(ctx context.Context, bpn types.BPN) ([]types.ConnectorURL, error) {
	if connectors, ok := c.lookup(bpn); ok {
		return connectors, nil
	}

	connectors, err := c.discoverer.FindConnectorsByBPN(ctx, bpn)
	if err != nil {
		return nil, err
	}
	if len(connectors) == 0 {
		return nil, nil
	}

	c.install(bpn, connectors)
	return connectors, nil
}

func (c *ConnectorCache) lookup(bpn types.BPN) ([]types.ConnectorURL, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[bpn]
	if !ok || time.Now().After(entry.ExpiresAt) || len(entry.Connectors) == 0 {
		return nil, false
	}

	out := make([]types.ConnectorURL, len(entry.Connectors))
	copy(out, entry.Connectors)
	return out, true
}

func (c *ConnectorCache) install(bpn types.BPN, connectors []types.ConnectorURL) {
	c.mu.Lock()
	c.entries[bpn] = types.ConnectorCacheEntry{
		BPN:        bpn,
		Connectors: connectors,
		ExpiresAt:  time.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	log.WithComponent("connector_cache").Info().Str("bpn", string(bpn)).Msg("refreshed connector cache")
	c.publish(bpn, len(connectors))
}

func (c *ConnectorCache) publish(bpn types.BPN, count int) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		Type:    events.EventConnectorsDiscovered,
		Message: "connector cache refreshed",
		Metadata: map[string]string{
			"bpn":   string(bpn),
			"count": strconv.Itoa(count),
		},
	})
	c.broker.Publish(&events.Event{Type: events.EventCacheDirty})
}

// AddConnectors populates or refreshes the connector entry for bpn
// directly, bypassing discovery. Used by tests; the persistence mirror's
// load path uses Restore.
func (c *ConnectorCache) AddConnectors(bpn types.BPN, connectors []types.ConnectorURL) {
	c.install(bpn, connectors)
}

// PurgeBPN removes bpn's connector entry entirely.
func (c *ConnectorCache) PurgeBPN(bpn types.BPN) {
	c.mu.Lock()
	delete(c.entries, bpn)
	c.mu.Unlock()
}

// PurgeAll clears every connector entry.
func (c *ConnectorCache) PurgeAll() {
	c.mu.Lock()
	c.entries = make(map[types.BPN]types.ConnectorCacheEntry)
	c.mu.Unlock()
}

// Size returns the number of BPNs currently cached.
func (c *ConnectorCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a defensive copy of every cache entry, used by the
// persistence mirror to compute its diff-hash and write the full table.
func (c *ConnectorCache) Snapshot() map[types.BPN]types.ConnectorCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[types.BPN]types.ConnectorCacheEntry, len(c.entries))
	for bpn, entry := range c.entries {
		connectors := make([]types.ConnectorURL, len(entry.Connectors))
		copy(connectors, entry.Connectors)
		out[bpn] = types.ConnectorCacheEntry{BPN: bpn, Connectors: connectors, ExpiresAt: entry.ExpiresAt}
	}
	return out
}

// Restore atomically replaces the entire cache with entries, used by the
// persistence mirror's loadFromStore.
func (c *ConnectorCache) Restore(entries map[types.BPN]types.ConnectorCacheEntry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// GetAllConnectorURLs returns every distinct connector URL known across
// all BPNs, for diagnostics.
func (c *ConnectorCache) GetAllConnectorURLs() []types.ConnectorURL {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[types.ConnectorURL]struct{})
	var out []types.ConnectorURL
	for _, entry := range c.entries {
		for _, url := range entry.Connectors {
			if _, ok := seen[url]; !ok {
				seen[url] = struct{}{}
				out = append(out, url)
			}
		}
	}
	return out
}
