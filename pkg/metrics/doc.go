/*
Package metrics registers the discovery core's Prometheus instrumentation
and exposes it over HTTP via Handler.

Cache-size gauges are refreshed on an interval by Collector, which polls
a Sizer supplied at wiring time — this keeps the package free of a
dependency on pkg/hub. The circuit breaker state gauge is set by
pkg/negotiation whenever a breaker changes state. Counters and histograms (cache
hits/misses, negotiation outcomes, harvest and sync durations) are updated
inline by the owning package at the point the event occurs.

Health, readiness and liveness endpoints live alongside the metrics
registry for convenience; RegisterComponent/UpdateComponent let any
long-running loop report its own status without importing net/http.
*/
package metrics
