package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// NewConnectorMirror creates the known_connectors table's Mirror, driven
// by connectorCache's Snapshot/Restore pair.
func NewConnectorMirror(pool *pgxpool.Pool, connectorCache *cache.ConnectorCache, broker *events.Broker) *Mirror[map[types.BPN]types.ConnectorCacheEntry] {
	return NewMirror(
		"known_connectors",
		pool,
		broker,
		connectorCache.Snapshot,
		connectorCache.Restore,
		saveKnownConnectors,
		loadKnownConnectors,
	)
}

func saveKnownConnectors(ctx context.Context, pool *pgxpool.Pool, snapshot map[types.BPN]types.ConnectorCacheEntry) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM known_connectors"); err != nil {
		return err
	}

	for bpn, entry := range snapshot {
		connectors, err := json.Marshal(entry.Connectors)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO known_connectors (bpnl, connectors, expires_at) VALUES ($1, $2, $3)`,
			string(bpn), connectors, entry.ExpiresAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func loadKnownConnectors(ctx context.Context, pool *pgxpool.Pool) (map[types.BPN]types.ConnectorCacheEntry, error) {
	rows, err := pool.Query(ctx, "SELECT bpnl, connectors, expires_at FROM known_connectors")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[types.BPN]types.ConnectorCacheEntry)
	for rows.Next() {
		var bpnl string
		var connectorsRaw []byte
		var expiresAt time.Time
		if err := rows.Scan(&bpnl, &connectorsRaw, &expiresAt); err != nil {
			return nil, err
		}

		var connectors []types.ConnectorURL
		if err := json.Unmarshal(connectorsRaw, &connectors); err != nil {
			return nil, err
		}

		entries[types.BPN(bpnl)] = types.ConnectorCacheEntry{
			BPN:        types.BPN(bpnl),
			Connectors: connectors,
			ExpiresAt:  expiresAt,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
