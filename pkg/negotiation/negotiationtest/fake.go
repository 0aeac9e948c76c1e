// Package negotiationtest provides an in-memory negotiation.Port for unit
// tests of pkg/discovery, avoiding a real HTTP/OAuth2/circuit-breaker
// stack in tests that only care about discovery/fetch orchestration.
package negotiationtest

import (
	"context"
	"sync"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/dcat"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// Fake is a scriptable negotiation.Port. Catalogs, negotiation failures
// and call counts are all configured directly on the struct before use;
// it is not safe to reconfigure concurrently with calls from a test under
// load, only to read the *Calls counters afterward.
type Fake struct {
	mu sync.Mutex

	// Catalogs maps a connector URL to the DCAT catalog GetCatalog
	// should return for it.
	Catalogs map[types.ConnectorURL]map[string]any

	// NegotiationErr, keyed by counterPartyID, makes DoDsp/DoDspByAssetId
	// fail for that counterparty until cleared.
	NegotiationErr map[string]error

	// DataplaneURL/AccessToken are returned by a successful negotiation.
	DataplaneURL string
	AccessToken  string

	edrs map[types.EDRKey]struct{}

	DoDspCalls            int
	DoDspByAssetIDCalls   int
	DeleteConnectionCalls int
	GetCatalogCalls       int
}

// NewFake creates an empty Fake ready for configuration.
func NewFake() *Fake {
	return &Fake{
		Catalogs:       make(map[types.ConnectorURL]map[string]any),
		NegotiationErr: make(map[string]error),
		edrs:           make(map[types.EDRKey]struct{}),
		DataplaneURL:   "https://dataplane.example/api/public",
		AccessToken:    "fake-access-token",
	}
}

func (f *Fake) DoDsp(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, policies []types.Policy, filterExpression types.FilterExpression) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DoDspCalls++

	if err, ok := f.NegotiationErr[counterPartyID]; ok {
		return "", "", err
	}
	if len(policies) == 0 {
		return "", "", types.ErrNoPolicies
	}

	key := types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       dcat.Checksum(filterExpression),
		PolicyChecksum:      dcat.Checksum(policies),
	}
	f.edrs[key] = struct{}{}
	return f.DataplaneURL, f.AccessToken, nil
}

func (f *Fake) DoDspByAssetId(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, assetID string, policies []types.Policy) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DoDspByAssetIDCalls++

	if err, ok := f.NegotiationErr[counterPartyID]; ok {
		return "", "", err
	}
	if len(policies) == 0 {
		return "", "", types.ErrNoPolicies
	}

	key := types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       dcat.Checksum(map[string]string{"assetId": assetID}),
		PolicyChecksum:      dcat.Checksum(policies),
	}
	f.edrs[key] = struct{}{}
	return f.DataplaneURL, f.AccessToken, nil
}

func (f *Fake) DeleteConnection(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, queryChecksum string, policyChecksum string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteConnectionCalls++

	key := types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       queryChecksum,
		PolicyChecksum:      policyChecksum,
	}
	delete(f.edrs, key)
	return nil
}

func (f *Fake) GetCatalog(ctx context.Context, counterPartyAddress types.ConnectorURL, filterExpression types.FilterExpression) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCatalogCalls++

	catalog, ok := f.Catalogs[counterPartyAddress]
	if !ok {
		return map[string]any{}, nil
	}
	return catalog, nil
}

// HasEDR reports whether a negotiation currently holds an EDR for the
// given key's 4-tuple, for assertions on retry/invalidation behavior.
func (f *Fake) HasEDR(counterPartyID string, counterPartyAddress types.ConnectorURL, queryChecksum, policyChecksum string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.edrs[types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       queryChecksum,
		PolicyChecksum:      policyChecksum,
	}]
	return ok
}
