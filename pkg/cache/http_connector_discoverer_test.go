package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

func TestHTTPConnectorDiscovererReturnsMatchingBPN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var bpns []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&bpns))
		require.Equal(t, []string{"BPNL000000000001"}, bpns)

		_ = json.NewEncoder(w).Encode([]discoveryEntry{
			{BPNL: "BPNL000000000001", ConnectorEndpoint: []string{"https://edc-a.example", "https://edc-b.example"}},
			{BPNL: "BPNL000000000002", ConnectorEndpoint: []string{"https://edc-c.example"}},
		})
	}))
	defer server.Close()

	discoverer := NewHTTPConnectorDiscoverer(nil, server.URL, 0)
	connectors, err := discoverer.FindConnectorsByBPN(context.Background(), types.BPN("BPNL000000000001"))
	require.NoError(t, err)
	assert.Equal(t, []types.ConnectorURL{"https://edc-a.example", "https://edc-b.example"}, connectors)
}

func TestHTTPConnectorDiscovererSurfacesUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	discoverer := NewHTTPConnectorDiscoverer(nil, server.URL, 0)
	_, err := discoverer.FindConnectorsByBPN(context.Background(), types.BPN("BPNL000000000001"))
	assert.ErrorIs(t, err, types.ErrUpstreamHTTP)
}
