// Package catalog fetches DCAT catalogs from multiple connectors in
// parallel. It is the Go counterpart of get_catalogs_by_filter_expression,
// which spawned one threading.Thread per connector and joined them all;
// here each connector gets its own goroutine under an errgroup with no
// limit, since catalog harvest latency is dominated by the slowest
// connector and there is no reason to linearize it.
package catalog

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// CatalogFetcher performs one connector's DSP catalog request. Satisfied
// by pkg/negotiation.HTTPPort; kept as a narrow interface here so
// pkg/catalog does not need to import pkg/negotiation.
type CatalogFetcher interface {
	GetCatalog(ctx context.Context, counterPartyAddress types.ConnectorURL, filterExpression types.FilterExpression) (map[string]any, error)
}

// Harvester fetches DCAT catalogs from a set of connectors concurrently.
type Harvester struct {
	fetcher CatalogFetcher
}

// New creates a Harvester backed by fetcher.
func New(fetcher CatalogFetcher) *Harvester {
	return &Harvester{fetcher: fetcher}
}

// Harvest fetches the catalog from every connector in connectorURLs
// concurrently, filtered by filterExpression. A connector whose fetch
// times out, returns a non-2xx status, or fails to parse writes no entry
// in the result; callers tolerate missing keys.
func (h *Harvester) Harvest(ctx context.Context, connectorURLs []types.ConnectorURL, filterExpression types.FilterExpression, timeout time.Duration) map[types.ConnectorURL]map[string]any {
	logger := log.WithComponent("catalog_harvester")

	type result struct {
		url     types.ConnectorURL
		catalog map[string]any
	}

	resultsCh := make(chan result, len(connectorURLs))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, connectorURL := range connectorURLs {
		connectorURL := connectorURL
		group.Go(func() error {
			callCtx, cancel := context.WithTimeout(groupCtx, timeout)
			defer cancel()

			catalog, err := h.fetcher.GetCatalog(callCtx, connectorURL, filterExpression)
			if err != nil {
				logger.Warn().Str("connector_url", string(connectorURL)).Err(err).Msg("catalog fetch failed")
				metrics.CatalogHarvestErrorsTotal.WithLabelValues(string(connectorURL)).Inc()
				return nil
			}

			resultsCh <- result{url: connectorURL, catalog: catalog}
			return nil
		})
	}

	// errgroup.Go never returns a non-nil error here (failures are
	// swallowed per-connector above), so Wait only blocks until every
	// goroutine has finished.
	_ = group.Wait()
	close(resultsCh)

	catalogs := make(map[types.ConnectorURL]map[string]any, len(connectorURLs))
	for r := range resultsCh {
		catalogs[r.url] = r.catalog
	}
	return catalogs
}
