package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	ConnectorCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ichub_connector_cache_size",
			Help: "Current number of BPNs held in the connector cache",
		},
	)

	DtrCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ichub_dtr_cache_size",
			Help: "Current number of digital twin registries held in the DTR cache",
		},
	)

	EdrCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ichub_edr_cache_size",
			Help: "Current number of negotiated endpoint data references held",
		},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_cache_hits_total",
			Help: "Total number of cache lookups served without upstream I/O, by cache",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_cache_misses_total",
			Help: "Total number of cache lookups that required upstream I/O, by cache",
		},
		[]string{"cache"},
	)

	// Harvest metrics
	CatalogHarvestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ichub_catalog_harvest_duration_seconds",
			Help:    "Time taken to harvest DCAT catalogs across all known connectors",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogHarvestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_catalog_harvest_errors_total",
			Help: "Total number of per-connector catalog harvest failures",
		},
		[]string{"connector_url"},
	)

	// Discovery metrics
	ShellDiscoveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ichub_shell_discovery_duration_seconds",
			Help:    "Time taken to discover one page of shells for a BPN",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bpn"},
	)

	ShellsDiscoveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_shells_discovered_total",
			Help: "Total number of shell descriptors returned to callers",
		},
		[]string{"bpn"},
	)

	DtrNegativelyCachedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ichub_dtr_negatively_cached_total",
			Help: "Total number of DTRs evicted after exhausting their retry budget",
		},
	)

	// Negotiation metrics
	NegotiationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_negotiations_total",
			Help: "Total number of contract negotiations attempted, by outcome",
		},
		[]string{"outcome"},
	)

	NegotiationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ichub_negotiation_duration_seconds",
			Help:    "Time taken to negotiate a contract and obtain an EDR",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ichub_circuit_breaker_state",
			Help: "Current gobreaker state per counter-party (0=closed, 1=half-open, 2=open)",
		},
		[]string{"counter_party_id"},
	)

	// Submodel fetch metrics
	SubmodelFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ichub_submodel_fetch_duration_seconds",
			Help:    "Time taken to fetch one submodel payload",
			Buckets: prometheus.DefBuckets,
		},
	)

	SubmodelFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_submodel_fetch_total",
			Help: "Total number of submodel fetch attempts, by status",
		},
		[]string{"status"},
	)

	// Persistence metrics
	PersistenceSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ichub_persistence_sync_duration_seconds",
			Help:    "Time taken for one mirror save-then-reload cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	PersistenceSyncCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_persistence_sync_cycles_total",
			Help: "Total number of persistence sync cycles completed, by outcome",
		},
		[]string{"outcome"},
	)

	PersistenceSaveSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ichub_persistence_save_skipped_total",
			Help: "Total number of sync cycles where the save was skipped because the in-memory hash was unchanged",
		},
	)

	// Pagination metrics
	PaginationLimitMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ichub_pagination_limit_mismatch_total",
			Help: "Total number of page requests rejected because the cursor limit did not match the requested limit",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ichub_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ichub_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(ConnectorCacheSize)
	prometheus.MustRegister(DtrCacheSize)
	prometheus.MustRegister(EdrCacheSize)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)

	prometheus.MustRegister(CatalogHarvestDuration)
	prometheus.MustRegister(CatalogHarvestErrorsTotal)

	prometheus.MustRegister(ShellDiscoveryDuration)
	prometheus.MustRegister(ShellsDiscoveredTotal)
	prometheus.MustRegister(DtrNegativelyCachedTotal)

	prometheus.MustRegister(NegotiationsTotal)
	prometheus.MustRegister(NegotiationDuration)
	prometheus.MustRegister(CircuitBreakerState)

	prometheus.MustRegister(SubmodelFetchDuration)
	prometheus.MustRegister(SubmodelFetchTotal)

	prometheus.MustRegister(PersistenceSyncDuration)
	prometheus.MustRegister(PersistenceSyncCyclesTotal)
	prometheus.MustRegister(PersistenceSaveSkippedTotal)

	prometheus.MustRegister(PaginationLimitMismatchTotal)

	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
