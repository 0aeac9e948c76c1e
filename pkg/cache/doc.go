/*
Package cache holds the four in-memory stores the discovery core keeps
authoritative for live queries: ConnectorCache and DtrCache (BPN-scoped,
TTL-based, backed by a map+sync.RWMutex), ShellStore (a process-wide LRU
of shell descriptors shared across DTRs), and EDRStore (negotiated
endpoint data references keyed by the 4-tuple that identifies a
negotiation).

Every cache follows the same discipline: check under a read lock,
perform any network I/O with no lock held, then install the result
under a write lock. pkg/persistence mirrors ConnectorCache, DtrCache and
EDRStore to Postgres without ever gating a read on that mirror — these
caches remain authoritative even if the database is unreachable.
*/
package cache
