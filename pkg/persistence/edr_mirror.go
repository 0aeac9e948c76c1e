package persistence

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// NewEDRMirror creates the edr_store table's Mirror, driven by edrs's
// Snapshot/Restore pair. EDRStore snapshots as a map keyed by a struct,
// which encoding/json cannot marshal directly, so the mirror converts to
// and from a deterministically-sorted slice at its boundary.
func NewEDRMirror(pool *pgxpool.Pool, edrs *cache.EDRStore, broker *events.Broker) *Mirror[[]types.EDR] {
	return NewMirror(
		"edr_store",
		pool,
		broker,
		func() []types.EDR { return sortedEDRs(edrs.Snapshot()) },
		func(list []types.EDR) { edrs.Restore(edrSliceToMap(list)) },
		saveEdrStore,
		loadEdrStore,
	)
}

func sortedEDRs(m map[types.EDRKey]types.EDR) []types.EDR {
	out := make([]types.EDR, 0, len(m))
	for _, edr := range m {
		out = append(out, edr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransferID < out[j].TransferID })
	return out
}

func edrSliceToMap(list []types.EDR) map[types.EDRKey]types.EDR {
	out := make(map[types.EDRKey]types.EDR, len(list))
	for _, edr := range list {
		out[types.EDRKey{
			CounterPartyID:      edr.CounterPartyID,
			CounterPartyAddress: edr.CounterPartyAddress,
			QueryChecksum:       edr.QueryChecksum,
			PolicyChecksum:      edr.PolicyChecksum,
		}] = edr
	}
	return out
}

func saveEdrStore(ctx context.Context, pool *pgxpool.Pool, snapshot []types.EDR) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM edr_store"); err != nil {
		return err
	}

	for _, edr := range snapshot {
		edrData, err := edrDataJSON(edr)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO edr_store (transfer_id, counter_party_id, counter_party_address, query_checksum, policy_checksum, edr_data)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			edr.TransferID, edr.CounterPartyID, edr.CounterPartyAddress, edr.QueryChecksum, edr.PolicyChecksum, edrData,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func loadEdrStore(ctx context.Context, pool *pgxpool.Pool) ([]types.EDR, error) {
	rows, err := pool.Query(ctx, "SELECT transfer_id, counter_party_id, counter_party_address, query_checksum, policy_checksum, edr_data FROM edr_store")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.EDR
	for rows.Next() {
		var transferID, counterPartyID, counterPartyAddress, queryChecksum, policyChecksum string
		var edrDataRaw []byte
		if err := rows.Scan(&transferID, &counterPartyID, &counterPartyAddress, &queryChecksum, &policyChecksum, &edrDataRaw); err != nil {
			return nil, err
		}

		edr, err := edrFromJSON(edrDataRaw)
		if err != nil {
			return nil, err
		}
		edr.TransferID = transferID
		edr.CounterPartyID = counterPartyID
		edr.CounterPartyAddress = counterPartyAddress
		edr.QueryChecksum = queryChecksum
		edr.PolicyChecksum = policyChecksum
		out = append(out, edr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// edrData is the jsonb payload stored in edr_store.edr_data: the
// dataplane credentials, kept out of the indexed key columns.
type edrData struct {
	DataplaneURL string    `json:"dataplaneUrl"`
	AccessToken  string    `json:"accessToken"`
	CreatedAt    time.Time `json:"createdAt"`
}

func edrDataJSON(edr types.EDR) ([]byte, error) {
	return json.Marshal(edrData{
		DataplaneURL: edr.DataplaneURL,
		AccessToken:  edr.AccessToken,
		CreatedAt:    edr.CreatedAt,
	})
}

func edrFromJSON(raw []byte) (types.EDR, error) {
	var data edrData
	if err := json.Unmarshal(raw, &data); err != nil {
		return types.EDR{}, err
	}
	return types.EDR{
		DataplaneURL: data.DataplaneURL,
		AccessToken:  data.AccessToken,
		CreatedAt:    data.CreatedAt,
	}, nil
}
