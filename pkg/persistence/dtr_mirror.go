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

// NewDtrMirror creates the known_dtrs table's Mirror, driven by
// dtrCache's Snapshot/Restore pair. The cache's natural shape nests DTRs
// under each BPN; the table is flat with a (bpnl, asset_id) natural key,
// so save/load each do the nest/flatten conversion.
func NewDtrMirror(pool *pgxpool.Pool, dtrCache *cache.DtrCache, broker *events.Broker) *Mirror[map[types.BPN]types.DtrCacheEntry] {
	return NewMirror(
		"known_dtrs",
		pool,
		broker,
		dtrCache.Snapshot,
		dtrCache.Restore,
		saveKnownDtrs,
		loadKnownDtrs,
	)
}

func saveKnownDtrs(ctx context.Context, pool *pgxpool.Pool, snapshot map[types.BPN]types.DtrCacheEntry) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM known_dtrs"); err != nil {
		return err
	}

	for bpn, entry := range snapshot {
		for _, dtr := range entry.DTRs {
			policies, err := json.Marshal(dtr.Policies)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO known_dtrs (bpnl, edc_url, asset_id, policies, expires_at) VALUES ($1, $2, $3, $4, $5)`,
				string(bpn), string(dtr.ConnectorURL), dtr.AssetID, policies, entry.ExpiresAt,
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func loadKnownDtrs(ctx context.Context, pool *pgxpool.Pool) (map[types.BPN]types.DtrCacheEntry, error) {
	rows, err := pool.Query(ctx, "SELECT bpnl, edc_url, asset_id, policies, expires_at FROM known_dtrs")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make(map[types.BPN]types.DtrCacheEntry)
	for rows.Next() {
		var bpnl, edcURL, assetID string
		var policiesRaw []byte
		var expiresAt time.Time
		if err := rows.Scan(&bpnl, &edcURL, &assetID, &policiesRaw, &expiresAt); err != nil {
			return nil, err
		}

		var policies []types.Policy
		if err := json.Unmarshal(policiesRaw, &policies); err != nil {
			return nil, err
		}

		bpn := types.BPN(bpnl)
		entry, ok := entries[bpn]
		if !ok {
			entry = types.DtrCacheEntry{BPN: bpn, DTRs: make(map[string]types.DTR), ExpiresAt: expiresAt}
		}
		entry.DTRs[assetID] = types.DTR{
			AssetID:      assetID,
			ConnectorURL: types.ConnectorURL(edcURL),
			Policies:     policies,
		}
		if expiresAt.After(entry.ExpiresAt) {
			entry.ExpiresAt = expiresAt
		}
		entries[bpn] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
