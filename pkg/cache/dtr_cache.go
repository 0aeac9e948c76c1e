package cache

import (
	"context"
	"sync"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/dcat"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// CatalogHarvester fetches DCAT catalogs from a set of connectors, each
// filtered by filterExpression. Implemented by pkg/catalog.
type CatalogHarvester interface {
	Harvest(ctx context.Context, connectorURLs []types.ConnectorURL, filterExpression types.FilterExpression, timeout time.Duration) map[types.ConnectorURL]map[string]any
}

// DtrTypeFilter is the (key, operator, value) triple used both to scope
// the catalog request and, via dct type comparison, to recognize a
// dataset as a digital twin registry. Defaults describe the Catena-X
// Digital Twin Registry taxonomy URI.
type DtrTypeFilter struct {
	types.FilterExpression
	DctType string
}

// DefaultDtrTypeFilter matches the Catena-X Digital Twin Registry asset
// type via the dct_type_key expanded JSON-LD property.
var DefaultDtrTypeFilter = DtrTypeFilter{
	FilterExpression: types.FilterExpression{
		Key:      "'http://purl.org/dc/terms/type'.'@id'",
		Operator: "=",
		Value:    "https://w3id.org/catenax/taxonomy#DigitalTwinRegistry",
	},
	DctType: "https://w3id.org/catenax/taxonomy#DigitalTwinRegistry",
}

// DtrCache holds the set of DTRs known for each BPN, keyed within a BPN
// by asset ID for O(1) add/get/delete, mirroring
// dtr_consumer_memory_manager.py's known_dtrs[bpn][DTR_DATA_KEY] shape.
type DtrCache struct {
	mu         sync.RWMutex
	entries    map[types.BPN]types.DtrCacheEntry
	ttl        time.Duration
	connector  *ConnectorCache
	harvester  CatalogHarvester
	typeFilter DtrTypeFilter
	timeout    time.Duration
	broker     *events.Broker
}

// DtrConfig configures a DtrCache.
type DtrConfig struct {
	TTL            time.Duration
	HarvestTimeout time.Duration
	TypeFilter     DtrTypeFilter
}

// NewDtrCache creates a DtrCache that discovers DTRs via connector (B)
// and harvester (D).
func NewDtrCache(cfg DtrConfig, connector *ConnectorCache, harvester CatalogHarvester, broker *events.Broker) *DtrCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	timeout := cfg.HarvestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	typeFilter := cfg.TypeFilter
	if typeFilter.Value == "" {
		typeFilter = DefaultDtrTypeFilter
	}

	return &DtrCache{
		entries:    make(map[types.BPN]types.DtrCacheEntry),
		ttl:        ttl,
		connector:  connector,
		harvester:  harvester,
		typeFilter: typeFilter,
		timeout:    timeout,
		broker:     broker,
	}
}

// GetDtrs returns the DTRs known for bpn, discovering them via
// connectors and catalog harvest when the cache is empty or expired.
func (c *DtrCache) GetDtrs(ctx context.Context, bpn types.BPN) ([]types.DTR, error) {
	if dtrs, ok := c.lookup(bpn); ok {
		metrics.CacheHitsTotal.WithLabelValues("dtr").Inc()
		return dtrs, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("dtr").Inc()

	connectors, err := c.connector.GetConnectors(ctx, bpn)
	if err != nil {
		return nil, err
	}
	if len(connectors) == 0 {
		return nil, nil
	}

	timer := metrics.NewTimer()
	catalogs := c.harvester.Harvest(ctx, connectors, c.typeFilter.FilterExpression, c.timeout)
	timer.ObserveDuration(metrics.CatalogHarvestDuration)

	for connectorURL, catalog := range catalogs {
		for _, dataset := range dcat.Datasets(catalog) {
			if !dcat.IsDTRAsset(dataset, c.typeFilter.DctType) {
				continue
			}
			assetID, _ := dataset["@id"].(string)
			if assetID == "" {
				continue
			}
			policies := dcat.ExtractPolicies(dataset)
			c.AddDtr(bpn, connectorURL, assetID, policies)
		}
	}

	dtrs, _ := c.lookup(bpn)
	return dtrs, nil
}

func (c *DtrCache) lookup(bpn types.BPN) ([]types.DTR, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[bpn]
	if !ok || time.Now().After(entry.ExpiresAt) || len(entry.DTRs) == 0 {
		return nil, false
	}

	out := make([]types.DTR, 0, len(entry.DTRs))
	for _, dtr := range entry.DTRs {
		out = append(out, dtr)
	}
	return out, true
}

// AddDtr inserts a DTR for bpn, keyed by assetID. Idempotent: an
// existing (bpn, assetID) entry is left untouched — the first insertion
// wins, and an update requires DeleteDtr followed by AddDtr.
func (c *DtrCache) AddDtr(bpn types.BPN, connectorURL types.ConnectorURL, assetID string, policies []types.Policy) {
	c.mu.Lock()
	entry, ok := c.entries[bpn]
	if !ok {
		entry = types.DtrCacheEntry{BPN: bpn, DTRs: make(map[string]types.DTR)}
	}
	entry.ExpiresAt = time.Now().Add(c.ttl)

	_, exists := entry.DTRs[assetID]
	if !exists {
		entry.DTRs[assetID] = types.DTR{AssetID: assetID, ConnectorURL: connectorURL, Policies: policies}
	}
	c.entries[bpn] = entry
	c.mu.Unlock()

	if !exists {
		log.WithComponent("dtr_cache").Info().Str("bpn", string(bpn)).Str("asset_id", assetID).Msg("added dtr to cache")
		c.publishDiscovered(bpn, assetID)
	}
}

func (c *DtrCache) publishDiscovered(bpn types.BPN, assetID string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		Type:     events.EventDtrDiscovered,
		Message:  "dtr added to cache",
		Metadata: map[string]string{"bpn": string(bpn), "asset_id": assetID},
	})
	c.broker.Publish(&events.Event{Type: events.EventCacheDirty})
}

// DeleteDtr removes a DTR from bpn's entry. Used for negative caching
// after a DTR's retry budget is exhausted during shell discovery.
func (c *DtrCache) DeleteDtr(bpn types.BPN, assetID string) {
	c.mu.Lock()
	if entry, ok := c.entries[bpn]; ok {
		delete(entry.DTRs, assetID)
		c.entries[bpn] = entry
	}
	c.mu.Unlock()

	metrics.DtrNegativelyCachedTotal.Inc()
	if c.broker != nil {
		c.broker.Publish(&events.Event{
			Type:     events.EventDtrNegativelyCached,
			Metadata: map[string]string{"bpn": string(bpn), "asset_id": assetID},
		})
		c.broker.Publish(&events.Event{Type: events.EventCacheDirty})
	}
}

// PurgeBPN removes every DTR cached for bpn.
func (c *DtrCache) PurgeBPN(bpn types.BPN) {
	c.mu.Lock()
	delete(c.entries, bpn)
	c.mu.Unlock()
}

// PurgeAll clears every DTR entry.
func (c *DtrCache) PurgeAll() {
	c.mu.Lock()
	c.entries = make(map[types.BPN]types.DtrCacheEntry)
	c.mu.Unlock()
}

// Size returns the total number of DTRs cached across all BPNs.
func (c *DtrCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, entry := range c.entries {
		total += len(entry.DTRs)
	}
	return total
}

// GetDtrsByConnector returns the DTRs cached for bpn whose ConnectorURL
// matches connectorURL, for diagnostics.
func (c *DtrCache) GetDtrsByConnector(bpn types.BPN, connectorURL types.ConnectorURL) []types.DTR {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[bpn]
	if !ok {
		return nil
	}
	var out []types.DTR
	for _, dtr := range entry.DTRs {
		if dtr.ConnectorURL == connectorURL {
			out = append(out, dtr)
		}
	}
	return out
}

// GetAllAssetIDs returns every distinct DTR asset ID known across all
// BPNs, for diagnostics.
func (c *DtrCache) GetAllAssetIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for _, entry := range c.entries {
		for assetID := range entry.DTRs {
			out = append(out, assetID)
		}
	}
	return out
}

// GetDtrCount returns the number of DTRs cached for bpn.
func (c *DtrCache) GetDtrCount(bpn types.BPN) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[bpn].DTRs)
}

// Snapshot returns a defensive copy of every cache entry, used by the
// persistence mirror.
func (c *DtrCache) Snapshot() map[types.BPN]types.DtrCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[types.BPN]types.DtrCacheEntry, len(c.entries))
	for bpn, entry := range c.entries {
		dtrs := make(map[string]types.DTR, len(entry.DTRs))
		for id, dtr := range entry.DTRs {
			dtrs[id] = dtr
		}
		out[bpn] = types.DtrCacheEntry{BPN: bpn, DTRs: dtrs, ExpiresAt: entry.ExpiresAt}
	}
	return out
}

// Restore atomically replaces the entire cache with entries.
func (c *DtrCache) Restore(entries map[types.BPN]types.DtrCacheEntry) {
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}
