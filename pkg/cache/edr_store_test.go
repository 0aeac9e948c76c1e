package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

func edrKey() types.EDRKey {
	return types.EDRKey{
		CounterPartyID:      "BPNL000000000001",
		CounterPartyAddress: "https://edc-a",
		QueryChecksum:       "q-checksum",
		PolicyChecksum:      "p-checksum",
	}
}

func TestEDRStorePutGet(t *testing.T) {
	s := NewEDRStore(nil)
	key := edrKey()
	edr := types.EDR{TransferID: "tx-1", CreatedAt: time.Now()}

	s.Put(key, edr)

	got, ok := s.Get(key)
	assert.True(t, ok)
	assert.Equal(t, edr.TransferID, got.TransferID)
}

func TestEDRStoreDeleteTransitionsToAbsent(t *testing.T) {
	s := NewEDRStore(nil)
	key := edrKey()
	s.Put(key, types.EDR{TransferID: "tx-1"})

	s.Delete(key)

	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestEDRStoreDistinctKeysDoNotCollide(t *testing.T) {
	s := NewEDRStore(nil)
	a := edrKey()
	b := a
	b.PolicyChecksum = "different-checksum"

	s.Put(a, types.EDR{TransferID: "tx-a"})
	s.Put(b, types.EDR{TransferID: "tx-b"})

	assert.Equal(t, 2, s.Size())
}

func TestEDRStorePruneExpired(t *testing.T) {
	s := NewEDRStore(nil)
	stale := edrKey()
	fresh := stale
	fresh.PolicyChecksum = "fresh"

	s.Put(stale, types.EDR{TransferID: "tx-stale", CreatedAt: time.Now().Add(-2 * time.Hour)})
	s.Put(fresh, types.EDR{TransferID: "tx-fresh", CreatedAt: time.Now()})

	removed := s.PruneExpired(time.Hour)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Size())
	_, ok := s.Get(fresh)
	assert.True(t, ok)
}

func TestEDRStoreSnapshotAndRestore(t *testing.T) {
	s := NewEDRStore(nil)
	key := edrKey()
	s.Put(key, types.EDR{TransferID: "tx-1"})

	snap := s.Snapshot()

	restored := NewEDRStore(nil)
	restored.Restore(snap)

	got, ok := restored.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "tx-1", got.TransferID)
}
