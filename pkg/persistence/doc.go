// Package persistence mirrors the in-memory connector, DTR and EDR
// caches to PostgreSQL for durability across restarts, via
// github.com/jackc/pgx/v5. Each of the three tables is driven by its own
// Mirror, ticking on a Start/Stop/stopCh loop, with the save/load
// algorithm ported from the original
// connector_consumer_sync_postgres_memory_manager.py's diff-hash approach:
// compute a SHA-256 over the canonical JSON snapshot, skip the write
// entirely if it matches the last saved hash, otherwise replace the
// table's contents in one transaction. In-memory state is always
// authoritative; every store error is logged and swallowed, never
// propagated to a caller.
package persistence
