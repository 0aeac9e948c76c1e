package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/negotiation/negotiationtest"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

func rawShellWithSubmodels(baseURL string) map[string]any {
	return map[string]any{
		"id": "shell-1",
		"submodelDescriptors": []any{
			map[string]any{
				"id":         "submodel-part-type",
				"semanticId": map[string]any{"keys": []any{map[string]any{"value": "urn:example:PartTypeInformation"}}},
				"endpoints": []any{
					map[string]any{
						"interface": "SUBMODEL-3.0",
						"protocolInformation": map[string]any{
							"href":            baseURL + "/submodels/part-type",
							"subprotocolBody": "id=asset-A;dspEndpoint=https://connector-a.example",
						},
					},
				},
			},
			map[string]any{
				"id":         "submodel-serial-part",
				"semanticId": map[string]any{"keys": []any{map[string]any{"value": "urn:example:SerialPart"}}},
				"endpoints": []any{
					map[string]any{
						"interface": "SUBMODEL-3.0",
						"protocolInformation": map[string]any{
							"href":            baseURL + "/submodels/serial-part",
							"subprotocolBody": "id=asset-A;dspEndpoint=https://connector-a.example",
						},
					},
				},
			},
			map[string]any{
				"id": "submodel-no-governance",
				"semanticId": map[string]any{
					"keys": []any{map[string]any{"value": "urn:example:Ungoverned"}},
				},
				"endpoints": []any{
					map[string]any{
						"interface": "SUBMODEL-3.0",
						"protocolInformation": map[string]any{
							"href":            baseURL + "/submodels/ungoverned",
							"subprotocolBody": "id=asset-B;dspEndpoint=https://connector-b.example",
						},
					},
				},
			},
			map[string]any{
				"id": "submodel-missing-semantic",
			},
		},
	}
}

func newTestFetcher(t *testing.T, submodelServer *httptest.Server) (*SubmodelFetcher, *negotiationtest.Fake, *cache.ShellStore) {
	t.Helper()
	fake := negotiationtest.NewFake()
	fake.DataplaneURL = submodelServer.URL
	fake.AccessToken = "submodel-token"

	dtrs := cache.NewDtrCache(cache.DtrConfig{}, cache.New(cache.Config{}, nil, nil), nil, nil)
	shells := cache.NewShellStore(0)
	shells.Put("shell-1", types.ShellDescriptor{ShellID: "shell-1", Raw: rawShellWithSubmodels(submodelServer.URL)})

	shellDiscovery := New(Config{}, dtrs, fake, shells)
	fetcher := NewSubmodelFetcher(SubmodelFetcherConfig{}, shellDiscovery, fake)
	return fetcher, fake, shells
}

func submodelPayloadServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/submodels/part-type", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"manufacturerPartId": "123"})
	})
	mux.HandleFunc("/submodels/serial-part", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDiscoverSubmodelsHonorsGovernance(t *testing.T) {
	server := submodelPayloadServer(t)
	fetcher, _, _ := newTestFetcher(t, server)

	governance := map[string][]types.Policy{
		"urn:example:PartTypeInformation": {{"permission": []any{}}},
		"urn:example:SerialPart":          {{"permission": []any{}}},
	}

	result, err := fetcher.DiscoverSubmodels(context.Background(), testBPN, "shell-1", governance)
	require.NoError(t, err)

	assert.Equal(t, types.SubmodelSuccess, result.SubmodelDescriptors["submodel-part-type"].Status)
	assert.Equal(t, types.SubmodelError, result.SubmodelDescriptors["submodel-serial-part"].Status)
	assert.Equal(t, types.SubmodelGovernanceNotFound, result.SubmodelDescriptors["submodel-no-governance"].Status)
	assert.Equal(t, types.SubmodelError, result.SubmodelDescriptors["submodel-missing-semantic"].Status)
	assert.Equal(t, 1, result.SubmodelsFound)
	assert.Contains(t, result.Submodels, "submodel-part-type")
	assert.NotContains(t, result.Submodels, "submodel-serial-part")
}

func TestDiscoverSubmodelsCascadesNegotiationFailure(t *testing.T) {
	server := submodelPayloadServer(t)
	fetcher, fake, _ := newTestFetcher(t, server)
	fake.NegotiationErr[string(testBPN)] = assert.AnError

	governance := map[string][]types.Policy{
		"urn:example:PartTypeInformation": {{"permission": []any{}}},
		"urn:example:SerialPart":          {{"permission": []any{}}},
	}

	result, err := fetcher.DiscoverSubmodels(context.Background(), testBPN, "shell-1", governance)
	require.NoError(t, err)

	assert.Equal(t, types.SubmodelError, result.SubmodelDescriptors["submodel-part-type"].Status)
	assert.Equal(t, types.SubmodelError, result.SubmodelDescriptors["submodel-serial-part"].Status)
	assert.Equal(t, 0, result.SubmodelsFound)
}

func TestDiscoverSubmodelsNoGovernanceMarksEverythingUngoverned(t *testing.T) {
	server := submodelPayloadServer(t)
	fetcher, _, _ := newTestFetcher(t, server)

	result, err := fetcher.DiscoverSubmodels(context.Background(), testBPN, "shell-1", nil)
	require.NoError(t, err)

	assert.Equal(t, types.SubmodelGovernanceNotFound, result.SubmodelDescriptors["submodel-part-type"].Status)
	assert.Equal(t, 0, result.SubmodelsFound)
}
