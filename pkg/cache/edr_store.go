package cache

import (
	"sync"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// EDRStore holds negotiated endpoint data references keyed by the
// 4-tuple (counterPartyId, counterPartyAddress, queryChecksum,
// policyChecksum). Its persistence follows the same mirror pattern as
// ConnectorCache and DtrCache but stores one row per EDR.
//
// State machine per key: absent -> (negotiate) -> active -> (downstream
// failure or explicit Delete) -> absent.
type EDRStore struct {
	mu      sync.RWMutex
	entries map[types.EDRKey]types.EDR
	broker  *events.Broker
}

// NewEDRStore creates an empty EDRStore.
func NewEDRStore(broker *events.Broker) *EDRStore {
	return &EDRStore{
		entries: make(map[types.EDRKey]types.EDR),
		broker:  broker,
	}
}

// Get returns the active EDR for key, if one exists.
func (s *EDRStore) Get(key types.EDRKey) (types.EDR, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edr, ok := s.entries[key]
	return edr, ok
}

// Put installs or replaces the EDR for key (the "negotiate" transition
// into the active state).
func (s *EDRStore) Put(key types.EDRKey, edr types.EDR) {
	s.mu.Lock()
	s.entries[key] = edr
	s.mu.Unlock()

	if s.broker != nil {
		s.broker.Publish(&events.Event{
			Type:     events.EventEdrNegotiated,
			Metadata: map[string]string{"counter_party_id": key.CounterPartyID},
		})
		s.broker.Publish(&events.Event{Type: events.EventCacheDirty})
	}
}

// Delete invalidates the EDR for key (the "downstream failure" or
// "explicit delete" transition back to absent).
func (s *EDRStore) Delete(key types.EDRKey) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	if s.broker != nil {
		s.broker.Publish(&events.Event{
			Type:     events.EventEdrInvalidated,
			Metadata: map[string]string{"counter_party_id": key.CounterPartyID},
		})
		s.broker.Publish(&events.Event{Type: events.EventCacheDirty})
	}
}

// Size returns the number of active EDRs.
func (s *EDRStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a defensive copy of every EDR, used by the
// persistence mirror.
func (s *EDRStore) Snapshot() map[types.EDRKey]types.EDR {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.EDRKey]types.EDR, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Restore atomically replaces every EDR, used by loadFromStore.
func (s *EDRStore) Restore(entries map[types.EDRKey]types.EDR) {
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// PruneExpired removes EDRs whose CreatedAt is older than maxAge,
// returning the number removed. EDRs carry no explicit expiry from the
// control plane; this is the store's only age bound, and it runs only
// when called (nothing in the negotiation layer calls it).
func (s *EDRStore) PruneExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, v := range s.entries {
		if v.CreatedAt.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
