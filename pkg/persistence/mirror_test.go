package persistence

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

func TestCanonicalHashStableAcrossMapIterationOrder(t *testing.T) {
	a := map[string]int{"x": 1, "y": 2, "z": 3}
	b := map[string]int{"z": 3, "y": 2, "x": 1}

	hashA, err := canonicalHash(a)
	require.NoError(t, err)
	hashB, err := canonicalHash(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestCanonicalHashChangesWithContent(t *testing.T) {
	first, err := canonicalHash(map[string]int{"x": 1})
	require.NoError(t, err)
	second, err := canonicalHash(map[string]int{"x": 2})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestEdrSliceRoundTripsThroughMap(t *testing.T) {
	original := []types.EDR{
		{TransferID: "t1", CounterPartyID: "bpn-1", CounterPartyAddress: "https://edc-a", QueryChecksum: "q1", PolicyChecksum: "p1"},
		{TransferID: "t2", CounterPartyID: "bpn-2", CounterPartyAddress: "https://edc-b", QueryChecksum: "q2", PolicyChecksum: "p2"},
	}

	asMap := edrSliceToMap(original)
	assert.Len(t, asMap, 2)

	roundTripped := sortedEDRs(asMap)
	require.Len(t, roundTripped, 2)
	assert.Equal(t, "t1", roundTripped[0].TransferID)
	assert.Equal(t, "t2", roundTripped[1].TransferID)
}

func TestMirrorSaveToStoreSkipsWhenSnapshotUnchanged(t *testing.T) {
	saveCalls := 0
	snapshotValue := map[string]int{"a": 1}

	var pool *pgxpool.Pool
	m := NewMirror(
		"test",
		pool,
		nil,
		func() map[string]int { return snapshotValue },
		func(map[string]int) {},
		func(ctx context.Context, pool *pgxpool.Pool, snapshot map[string]int) error {
			saveCalls++
			return nil
		},
		func(ctx context.Context, pool *pgxpool.Pool) (map[string]int, error) {
			return nil, nil
		},
	)

	ctx := context.Background()
	m.saveToStore(ctx)
	m.saveToStore(ctx)
	assert.Equal(t, 1, saveCalls)

	snapshotValue = map[string]int{"a": 2}
	m.saveToStore(ctx)
	assert.Equal(t, 2, saveCalls)
}
