/*
Package workerpool provides RunAll, a small bounded-fan-out helper used by
pkg/discovery's submodel negotiation (cap 10) and fetch (cap 20) stages.
See pkg/catalog for the unbounded counterpart used by catalog harvesting,
where there is no hard resource ceiling to respect.
*/
package workerpool
