package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/negotiation/negotiationtest"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

const testBPN = types.BPN("BPNL000000000001")
const testAssetID = "registry-asset-1"

func newTestDiscovery(t *testing.T, dataplaneHandler http.Handler) (*ShellDiscovery, *negotiationtest.Fake, *cache.DtrCache, *httptest.Server) {
	t.Helper()
	discovery, fake, dtrs, _, server := newTestDiscoveryWithShells(t, dataplaneHandler)
	return discovery, fake, dtrs, server
}

func newTestDiscoveryWithShells(t *testing.T, dataplaneHandler http.Handler) (*ShellDiscovery, *negotiationtest.Fake, *cache.DtrCache, *cache.ShellStore, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(dataplaneHandler)
	t.Cleanup(server.Close)

	fake := negotiationtest.NewFake()
	fake.DataplaneURL = server.URL
	fake.AccessToken = "dataplane-token"

	dtrs := cache.NewDtrCache(cache.DtrConfig{}, cache.New(cache.Config{}, nil, nil), nil, nil)
	dtrs.AddDtr(testBPN, types.ConnectorURL("https://connector.example"), testAssetID, []types.Policy{{"permission": []any{}}})

	shells := cache.NewShellStore(0)
	discovery := New(Config{}, dtrs, fake, shells)
	return discovery, fake, dtrs, shells, server
}

// shellDataplaneHandler serves both the shellsByAssetLink lookup and the
// per-shell descriptor fetch from a single mux, paginating shellIDs
// pageSize per page when pageSize > 0.
func shellDataplaneHandler(shellIDs []string, pageSize int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/lookup/shellsByAssetLink", func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		start := 0
		if cursor != "" {
			start = len(cursor)
		}
		end := len(shellIDs)
		if pageSize > 0 && start+pageSize < end {
			end = start + pageSize
		}
		if start > len(shellIDs) {
			start = len(shellIDs)
		}
		page := shellIDs[start:end]
		nextCursor := ""
		if end < len(shellIDs) {
			nextCursor = strings.Repeat("x", end)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":          page,
			"paging_metadata": map[string]any{"cursor": nextCursor},
		})
	})
	mux.HandleFunc("/shell-descriptors/", func(w http.ResponseWriter, r *http.Request) {
		encoded := strings.TrimPrefix(r.URL.Path, "/shell-descriptors/")
		shellID, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": string(shellID),
			"submodelDescriptors": []any{
				map[string]any{
					"id": "submodel-1",
					"semanticId": map[string]any{
						"keys": []any{map[string]any{"value": "urn:example:PartTypeInformation"}},
					},
					"endpoints": []any{
						map[string]any{
							"interface": "SUBMODEL-3.0",
							"protocolInformation": map[string]any{
								"href":            "https://dataplane.example/submodels/part-type",
								"subprotocolBody": "id=submodel-asset-1;dspEndpoint=https://submodel-connector.example",
							},
						},
					},
				},
			},
		})
	})
	return mux
}

func TestDiscoverShellsHappyPath(t *testing.T) {
	discovery, _, _, _ := newTestDiscovery(t, shellDataplaneHandler([]string{"shell-1", "shell-2"}, 0))

	result, err := discovery.DiscoverShells(context.Background(), testBPN, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ShellsFound)
	assert.Len(t, result.ShellDescriptors, 2)
	assert.Len(t, result.PerDtrResults, 1)
	assert.Equal(t, types.PerDtrSuccess, result.PerDtrResults[0].Status)
	for _, sd := range result.ShellDescriptors {
		require.Len(t, sd.SubmodelDescriptors, 1)
		submodel := sd.SubmodelDescriptors[0]
		assert.Equal(t, "urn:example:PartTypeInformation", submodel.SemanticID)

		assert.Equal(t, "submodel-asset-1", submodel.AssetID)
		assert.Equal(t, types.ConnectorURL("https://submodel-connector.example"), submodel.ConnectorURL)
		assert.NotEqual(t, testAssetID, submodel.AssetID)
		assert.NotEqual(t, types.ConnectorURL("https://connector.example"), submodel.ConnectorURL)
	}
}

func TestDiscoverShellsPaginatesAcrossCalls(t *testing.T) {
	discovery, _, _, _ := newTestDiscovery(t, shellDataplaneHandler([]string{"shell-1", "shell-2", "shell-3"}, 1))

	limit := 1
	first, err := discovery.DiscoverShells(context.Background(), testBPN, nil, &limit, "")
	require.NoError(t, err)
	require.Len(t, first.ShellDescriptors, 1)
	require.NotNil(t, first.Pagination)
	require.NotEmpty(t, first.Pagination.Next)

	second, err := discovery.DiscoverShells(context.Background(), testBPN, nil, &limit, first.Pagination.Next)
	require.NoError(t, err)
	assert.Len(t, second.ShellDescriptors, 1)
	assert.NotEqual(t, first.ShellDescriptors[0].ShellID, second.ShellDescriptors[0].ShellID)
}

func TestDiscoverShellsRejectsLimitMismatch(t *testing.T) {
	discovery, _, _, _ := newTestDiscovery(t, shellDataplaneHandler([]string{"shell-1", "shell-2"}, 1))

	limit := 1
	first, err := discovery.DiscoverShells(context.Background(), testBPN, nil, &limit, "")
	require.NoError(t, err)
	require.NotNil(t, first.Pagination)

	otherLimit := 5
	_, err = discovery.DiscoverShells(context.Background(), testBPN, nil, &otherLimit, first.Pagination.Next)
	assert.ErrorIs(t, err, types.ErrLimitMismatch)
}

func TestDiscoverShellsNegativelyCachesFailingDtr(t *testing.T) {
	discovery, _, dtrs, _ := newTestDiscovery(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	result, err := discovery.DiscoverShells(context.Background(), testBPN, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ShellsFound)
	require.Len(t, result.PerDtrResults, 1)
	assert.Equal(t, types.PerDtrFailed, result.PerDtrResults[0].Status)

	remaining := dtrs.GetDtrsByConnector(testBPN, "https://connector.example")
	assert.Empty(t, remaining)
}

func TestDiscoverShellReturnsCachedShellWithoutLookup(t *testing.T) {
	discovery, fake, _, shells, _ := newTestDiscoveryWithShells(t, shellDataplaneHandler(nil, 0))
	shells.Put("shell-1", types.ShellDescriptor{ShellID: "shell-1"})

	shell, err := discovery.DiscoverShell(context.Background(), testBPN, "shell-1")
	require.NoError(t, err)
	require.NotNil(t, shell)
	assert.Equal(t, "shell-1", shell.ShellID)
	assert.Equal(t, 0, fake.DoDspByAssetIDCalls)
}

func TestDiscoverShellFallsBackToDtrScan(t *testing.T) {
	discovery, _, _, _ := newTestDiscovery(t, shellDataplaneHandler([]string{"shell-1"}, 0))

	shell, err := discovery.DiscoverShell(context.Background(), testBPN, "shell-1")
	require.NoError(t, err)
	require.NotNil(t, shell)
	assert.Equal(t, "shell-1", shell.ShellID)
}
