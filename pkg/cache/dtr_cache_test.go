package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

type fakeHarvester struct {
	catalogs map[types.ConnectorURL]map[string]any
	calls    int
}

func (f *fakeHarvester) Harvest(ctx context.Context, connectorURLs []types.ConnectorURL, filterExpression types.FilterExpression, timeout time.Duration) map[types.ConnectorURL]map[string]any {
	f.calls++
	return f.catalogs
}

func dtrCatalog(assetID string) map[string]any {
	return map[string]any{
		"dcat:dataset": []any{
			map[string]any{
				"@id":      assetID,
				"dct:type": map[string]any{"@id": DefaultDtrTypeFilter.DctType},
				"odrl:hasPolicy": []any{
					map[string]any{"@id": "policy-1", "@type": "odrl:Offer", "odrl:permission": "use"},
				},
			},
		},
	}
}

func TestDtrCacheDiscoversDtrFromCatalog(t *testing.T) {
	connDisc := &fakeDiscoverer{connectors: []types.ConnectorURL{"https://edc-a"}}
	connector := New(Config{TTL: time.Hour}, connDisc, nil)

	harvester := &fakeHarvester{catalogs: map[types.ConnectorURL]map[string]any{
		"https://edc-a": dtrCatalog("urn:uuid:dtr-1"),
	}}
	dtrCache := NewDtrCache(DtrConfig{}, connector, harvester, nil)

	dtrs, err := dtrCache.GetDtrs(context.Background(), "BPNL000000000001")
	require.NoError(t, err)
	require.Len(t, dtrs, 1)
	assert.Equal(t, "urn:uuid:dtr-1", dtrs[0].AssetID)
	assert.Equal(t, types.ConnectorURL("https://edc-a"), dtrs[0].ConnectorURL)
	require.Len(t, dtrs[0].Policies, 1)
	assert.NotContains(t, dtrs[0].Policies[0], "@id")
}

func TestDtrCacheSkipsNonDtrDatasets(t *testing.T) {
	connector := New(Config{}, &fakeDiscoverer{connectors: []types.ConnectorURL{"https://edc-a"}}, nil)
	harvester := &fakeHarvester{catalogs: map[types.ConnectorURL]map[string]any{
		"https://edc-a": {
			"dcat:dataset": []any{
				map[string]any{"@id": "not-a-dtr", "dct:type": map[string]any{"@id": "something-else"}},
			},
		},
	}}
	dtrCache := NewDtrCache(DtrConfig{}, connector, harvester, nil)

	dtrs, err := dtrCache.GetDtrs(context.Background(), "BPNL000000000001")
	require.NoError(t, err)
	assert.Empty(t, dtrs)
}

func TestDtrCacheNoConnectorsReturnsEmptyWithoutHarvesting(t *testing.T) {
	connector := New(Config{}, &fakeDiscoverer{connectors: nil}, nil)
	harvester := &fakeHarvester{}
	dtrCache := NewDtrCache(DtrConfig{}, connector, harvester, nil)

	dtrs, err := dtrCache.GetDtrs(context.Background(), "BPNL000000000001")
	require.NoError(t, err)
	assert.Empty(t, dtrs)
	assert.Zero(t, harvester.calls)
}

func TestDtrCacheAddDtrIsIdempotentFirstWriteWins(t *testing.T) {
	connector := New(Config{}, &fakeDiscoverer{}, nil)
	dtrCache := NewDtrCache(DtrConfig{}, connector, &fakeHarvester{}, nil)

	dtrCache.AddDtr("BPNL000000000001", "https://edc-a", "asset-1", []types.Policy{{"p": "1"}})
	dtrCache.AddDtr("BPNL000000000001", "https://edc-b", "asset-1", []types.Policy{{"p": "2"}})

	assert.Equal(t, 1, dtrCache.GetDtrCount("BPNL000000000001"))
	dtrs := dtrCache.GetDtrsByConnector("BPNL000000000001", "https://edc-a")
	require.Len(t, dtrs, 1)
}

func TestDtrCacheDeleteDtr(t *testing.T) {
	connector := New(Config{}, &fakeDiscoverer{}, nil)
	dtrCache := NewDtrCache(DtrConfig{}, connector, &fakeHarvester{}, nil)

	dtrCache.AddDtr("BPNL000000000001", "https://edc-a", "asset-1", nil)
	dtrCache.DeleteDtr("BPNL000000000001", "asset-1")

	assert.Equal(t, 0, dtrCache.GetDtrCount("BPNL000000000001"))
}

func TestDtrCachePurgeBPNAndAll(t *testing.T) {
	connector := New(Config{}, &fakeDiscoverer{}, nil)
	dtrCache := NewDtrCache(DtrConfig{}, connector, &fakeHarvester{}, nil)

	dtrCache.AddDtr("BPNL000000000001", "https://edc-a", "asset-1", nil)
	dtrCache.AddDtr("BPNL000000000002", "https://edc-b", "asset-2", nil)

	dtrCache.PurgeBPN("BPNL000000000001")
	assert.Equal(t, 1, dtrCache.Size())

	dtrCache.PurgeAll()
	assert.Equal(t, 0, dtrCache.Size())
}

func TestDtrCacheGetAllAssetIDs(t *testing.T) {
	connector := New(Config{}, &fakeDiscoverer{}, nil)
	dtrCache := NewDtrCache(DtrConfig{}, connector, &fakeHarvester{}, nil)

	dtrCache.AddDtr("BPNL000000000001", "https://edc-a", "asset-1", nil)
	dtrCache.AddDtr("BPNL000000000002", "https://edc-b", "asset-2", nil)

	assert.ElementsMatch(t, []string{"asset-1", "asset-2"}, dtrCache.GetAllAssetIDs())
}
