package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// DefaultDiscoveryTimeout bounds a single connector-discovery round trip.
const DefaultDiscoveryTimeout = 30 * time.Second

// HTTPConnectorDiscoverer implements ConnectorDiscoverer against a
// Catena-X Discovery Finder-shaped endpoint: POST a JSON array of BPNs,
// receive one entry per BPN carrying its known connector endpoints. The
// upstream tractusx_sdk.dataspace.services.discovery.ConnectorDiscoveryService
// this is ported from wraps the same bulk-lookup call; this port issues
// it one BPN at a time, matching ConnectorCache's one-BPN-at-a-time
// GetConnectors call pattern.
type HTTPConnectorDiscoverer struct {
	httpClient   *http.Client
	discoveryURL string
	timeout      time.Duration
}

// NewHTTPConnectorDiscoverer creates a discoverer against discoveryURL
// (the Discovery Finder's /api/administration/connectors/discovery
// endpoint), using httpClient for the outbound call (an oauth2-wrapped
// client when the discovery service requires bearer auth, a bare
// *http.Client otherwise).
func NewHTTPConnectorDiscoverer(httpClient *http.Client, discoveryURL string, timeout time.Duration) *HTTPConnectorDiscoverer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &HTTPConnectorDiscoverer{httpClient: httpClient, discoveryURL: discoveryURL, timeout: timeout}
}

type discoveryEntry struct {
	BPNL              string   `json:"bpnl"`
	ConnectorEndpoint []string `json:"connectorEndpoint"`
}

// FindConnectorsByBPN queries the discovery finder for bpn's known
// connector endpoints.
func (d *HTTPConnectorDiscoverer) FindConnectorsByBPN(ctx context.Context, bpn types.BPN) ([]types.ConnectorURL, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal([]string{string(bpn)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, d.discoveryURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUpstreamHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", types.ErrUpstreamHTTP, resp.StatusCode)
	}

	var entries []discoveryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding discovery response: %w", err)
	}

	var connectors []types.ConnectorURL
	for _, entry := range entries {
		if entry.BPNL != string(bpn) {
			continue
		}
		for _, endpoint := range entry.ConnectorEndpoint {
			connectors = append(connectors, types.ConnectorURL(endpoint))
		}
	}
	return connectors, nil
}
