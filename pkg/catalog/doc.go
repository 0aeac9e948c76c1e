/*
Package catalog harvests DCAT catalogs from many connectors in parallel.
Harvester.Harvest fans one goroutine out per connector via
golang.org/x/sync/errgroup with no concurrency limit — catalog harvest
latency is dominated by the slowest connector, so there is nothing to
gain from bounding fan-out the way pkg/discovery bounds its submodel
worker pools via pkg/workerpool.
*/
package catalog
