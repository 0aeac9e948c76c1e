package hub

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/catalog"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/discovery"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/negotiation"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/persistence"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// Hub owns every cache, the negotiation port, shell/submodel discovery,
// and the persistence mirrors that back them. It implements
// metrics.Sizer so a single Collector can poll all three caches without
// pkg/metrics importing pkg/hub.
type Hub struct {
	connectors *cache.ConnectorCache
	dtrs       *cache.DtrCache
	shells     *cache.ShellStore
	edrs       *cache.EDRStore

	harvester   *catalog.Harvester
	negotiation *negotiation.HTTPPort
	discovery   *discovery.ShellDiscovery
	submodels   *discovery.SubmodelFetcher

	connectorMirror *persistence.Mirror[map[types.BPN]types.ConnectorCacheEntry]
	dtrMirror       *persistence.Mirror[map[types.BPN]types.DtrCacheEntry]
	edrMirror       *persistence.Mirror[[]types.EDR]

	collector    *metrics.Collector
	broker       *events.Broker
	syncInterval time.Duration
}

// Config collects every tunable needed to construct a Hub. Zero values
// fall back to each subcomponent's own defaults.
type Config struct {
	ConnectorTTL   time.Duration
	DtrTTL         time.Duration
	HarvestTimeout time.Duration
	DtrTypeFilter  cache.DtrTypeFilter

	ShellCacheCapacity int
	DiscoveryRetries   int
	DiscoveryTimeout   time.Duration

	SubmodelNegotiationPoolCap int
	SubmodelFetchPoolCap       int
	SubmodelFetchTimeout       time.Duration

	DiscoveryServiceURL string
	DiscoveryHTTPClient *http.Client

	Negotiation negotiation.Config

	DB           *pgxpool.Pool
	SyncInterval time.Duration
}

// New wires a Hub from cfg. db may be nil, in which case no persistence
// mirrors are constructed or started (the in-memory caches still work;
// nothing survives a restart).
func New(cfg Config) (*Hub, error) {
	broker := events.NewBroker()
	broker.Start()

	discoverer := cache.NewHTTPConnectorDiscoverer(cfg.DiscoveryHTTPClient, cfg.DiscoveryServiceURL, cfg.DiscoveryTimeout)
	connectors := cache.New(cache.Config{TTL: cfg.ConnectorTTL}, discoverer, broker)

	shells := cache.NewShellStore(cfg.ShellCacheCapacity)
	edrs := cache.NewEDRStore(broker)

	negotiationPort := negotiation.NewHTTPPort(cfg.Negotiation, edrs, broker)
	harvester := catalog.New(negotiationPort)

	dtrs := cache.NewDtrCache(cache.DtrConfig{
		TTL:            cfg.DtrTTL,
		HarvestTimeout: cfg.HarvestTimeout,
		TypeFilter:     cfg.DtrTypeFilter,
	}, connectors, harvester, broker)

	shellDiscovery := discovery.New(discovery.Config{
		MaxRetries:    cfg.DiscoveryRetries,
		LookupTimeout: cfg.DiscoveryTimeout,
	}, dtrs, negotiationPort, shells)

	submodelFetcher := discovery.NewSubmodelFetcher(discovery.SubmodelFetcherConfig{
		NegotiationPoolCap: cfg.SubmodelNegotiationPoolCap,
		FetchPoolCap:       cfg.SubmodelFetchPoolCap,
		FetchTimeout:       cfg.SubmodelFetchTimeout,
	}, shellDiscovery, negotiationPort)

	syncInterval := cfg.SyncInterval
	if syncInterval <= 0 {
		syncInterval = persistence.DefaultSyncInterval
	}

	h := &Hub{
		connectors:      connectors,
		dtrs:            dtrs,
		shells:          shells,
		edrs:            edrs,
		harvester:       harvester,
		negotiation:     negotiationPort,
		discovery:       shellDiscovery,
		submodels:       submodelFetcher,
		broker:          broker,
		syncInterval:    syncInterval,
	}
	if cfg.DB != nil {
		h.connectorMirror = persistence.NewConnectorMirror(cfg.DB, connectors, broker)
		h.dtrMirror = persistence.NewDtrMirror(cfg.DB, dtrs, broker)
		h.edrMirror = persistence.NewEDRMirror(cfg.DB, edrs, broker)
	}
	h.collector = metrics.NewCollector(h)

	return h, nil
}

// Start loads every mirror's initial state from the database (if one was
// configured) and starts the three sync loops plus the metrics collector.
func (h *Hub) Start(ctx context.Context) error {
	if h.connectorMirror != nil {
		h.connectorMirror.Start(ctx, h.syncInterval)
	}
	if h.dtrMirror != nil {
		h.dtrMirror.Start(ctx, h.syncInterval)
	}
	if h.edrMirror != nil {
		h.edrMirror.Start(ctx, h.syncInterval)
	}
	h.collector.Start()
	return nil
}

// Stop flushes every mirror one final time, then stops the collector and
// event broker.
func (h *Hub) Stop() {
	if h.connectorMirror != nil {
		h.connectorMirror.Stop()
	}
	if h.dtrMirror != nil {
		h.dtrMirror.Stop()
	}
	if h.edrMirror != nil {
		h.edrMirror.Stop()
	}
	h.collector.Stop()
	h.broker.Stop()
}

// DiscoverShells runs the paginated shell-discovery operation (component
// E) against bpn.
func (h *Hub) DiscoverShells(ctx context.Context, bpn types.BPN, querySpec discovery.QuerySpec, limit *int, cursor string) (types.DiscoverResult, error) {
	return h.discovery.DiscoverShells(ctx, bpn, querySpec, limit, cursor)
}

// DiscoverSubmodels runs the governance-gated submodel-fetch operation
// (component F) against a single shell.
func (h *Hub) DiscoverSubmodels(ctx context.Context, bpn types.BPN, shellID string, governance map[string][]types.Policy) (types.SubmodelFetchResult, error) {
	return h.submodels.DiscoverSubmodels(ctx, bpn, shellID, governance)
}

// PurgeBPN drops every cached connector and DTR entry for bpn.
func (h *Hub) PurgeBPN(bpn types.BPN) {
	h.connectors.PurgeBPN(bpn)
	h.dtrs.PurgeBPN(bpn)
}

// PurgeAll drops every cached connector and DTR entry across all BPNs.
func (h *Hub) PurgeAll() {
	h.connectors.PurgeAll()
	h.dtrs.PurgeAll()
}

// ConnectorCacheSize implements metrics.Sizer.
func (h *Hub) ConnectorCacheSize() int { return h.connectors.Size() }

// DtrCacheSize implements metrics.Sizer.
func (h *Hub) DtrCacheSize() int { return h.dtrs.Size() }

// EdrCacheSize implements metrics.Sizer.
func (h *Hub) EdrCacheSize() int { return h.edrs.Size() }

// Validate fails fast on configuration combinations that would otherwise
// only surface as a confusing runtime error deep in the negotiation
// exchange.
func (cfg Config) Validate() error {
	if cfg.Negotiation.TokenURL == "" {
		return fmt.Errorf("hub: negotiation token URL is required")
	}
	if cfg.DiscoveryServiceURL == "" {
		return fmt.Errorf("hub: discovery service URL is required")
	}
	return nil
}
