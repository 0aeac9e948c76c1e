// Package negotiation ports the dataspace SDK: catalog retrieval, contract
// negotiation, and the resulting endpoint data references.
package negotiation

import (
	"context"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// Port abstracts the dataspace SDK's catalog/negotiation/transfer
// exchange. Implemented by HTTPPort; pkg/discovery depends only on this
// interface so tests can swap in negotiationtest.Fake.
type Port interface {
	// DoDsp obtains or reuses an EDR keyed by the 4-tuple
	// (counterPartyID, counterPartyAddress, queryChecksum, policyChecksum)
	// and returns the dataplane URL and access token to use against it.
	DoDsp(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, policies []types.Policy, filterExpression types.FilterExpression) (dataplaneURL string, accessToken string, err error)

	// DoDspByAssetId is DoDsp scoped to a specific asset rather than a
	// filter expression.
	DoDspByAssetId(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, assetID string, policies []types.Policy) (dataplaneURL string, accessToken string, err error)

	// DeleteConnection invalidates the EDR for the given key, the same
	// 4-tuple used to obtain it via DoDsp or DoDspByAssetId. Called by
	// ShellDiscovery between retries; SubmodelFetcher does not retry and
	// does not call it.
	DeleteConnection(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, queryChecksum string, policyChecksum string) error

	// GetCatalog performs the raw DCAT catalog fetch. Satisfies
	// pkg/catalog.CatalogFetcher structurally.
	GetCatalog(ctx context.Context, counterPartyAddress types.ConnectorURL, filterExpression types.FilterExpression) (map[string]any, error)
}
