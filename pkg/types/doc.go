/*
Package types defines the domain model shared by every component of the
discovery and caching core: BPNs, connector URLs, digital twin registries,
shell and submodel descriptors, endpoint data references, and the
pagination cursor shape.

These types carry no behavior of their own — they are passed by value or
pointer between pkg/cache, pkg/catalog, pkg/discovery, pkg/negotiation and
pkg/persistence, which own the locking, I/O and lifecycle rules described
in each of those packages' documentation.
*/
package types
