package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/negotiation"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/workerpool"
)

const (
	DefaultNegotiationPoolCap = 10
	DefaultFetchPoolCap       = 20
	DefaultFetchTimeout       = 30 * time.Second
)

// SubmodelFetcher implements discoverSubmodels (component F): given a
// shell and a caller-supplied governance map, it fetches the payload of
// every submodel whose semanticId the governance map grants policies
// for, negotiating one EDR per distinct backing asset.
type SubmodelFetcher struct {
	shells      *ShellDiscovery
	negotiation negotiation.Port
	httpClient  *http.Client

	negotiationPool *workerpool.Pool
	fetchPool       *workerpool.Pool
	fetchTimeout    time.Duration
}

// SubmodelFetcherConfig configures SubmodelFetcher's bounded worker
// pools and per-request timeout.
type SubmodelFetcherConfig struct {
	NegotiationPoolCap int
	FetchPoolCap       int
	FetchTimeout       time.Duration
}

// NewSubmodelFetcher creates a SubmodelFetcher backed by shells (for
// discoverShell) and port (for per-asset negotiation).
func NewSubmodelFetcher(cfg SubmodelFetcherConfig, shells *ShellDiscovery, port negotiation.Port) *SubmodelFetcher {
	negotiationCap := cfg.NegotiationPoolCap
	if negotiationCap <= 0 {
		negotiationCap = DefaultNegotiationPoolCap
	}
	fetchCap := cfg.FetchPoolCap
	if fetchCap <= 0 {
		fetchCap = DefaultFetchPoolCap
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &SubmodelFetcher{
		shells:          shells,
		negotiation:     port,
		httpClient:      &http.Client{},
		negotiationPool: workerpool.New(negotiationCap),
		fetchPool:       workerpool.New(fetchCap),
		fetchTimeout:    fetchTimeout,
	}
}

// submodelEndpoint is the parsed form of one submodel descriptor's
// subprotocolBody: the asset and connector backing the submodel plus the
// URL its payload lives at.
type submodelEndpoint struct {
	submodelID   string
	semanticID   string
	assetID      string
	connectorURL types.ConnectorURL
	href         string
}

// DiscoverSubmodels fetches shellID's descriptor via discoverShell, then
// the payload of every submodel whose semanticId appears in governance,
// negotiating one EDR per distinct backing asset.
func (f *SubmodelFetcher) DiscoverSubmodels(ctx context.Context, bpn types.BPN, shellID string, governance map[string][]types.Policy) (types.SubmodelFetchResult, error) {
	logger := log.WithComponent("submodel_fetcher")

	shell, err := f.shells.DiscoverShell(ctx, bpn, shellID)
	if err != nil {
		return types.SubmodelFetchResult{}, fmt.Errorf("discovering shell %s: %w", shellID, err)
	}

	descriptorResults := make(map[string]types.SubmodelDescriptorResult, len(shell.SubmodelDescriptors))
	endpoints := make(map[string]submodelEndpoint, len(shell.SubmodelDescriptors))
	byAsset := make(map[string][]string) // assetID -> submodelIDs pending negotiation
	var dtr *types.DTR

	for _, rawSD := range parseRawSubmodelDescriptors(shell.Raw) {
		result := types.SubmodelDescriptorResult{
			SubmodelID: rawSD.submodelID,
			SemanticID: rawSD.semanticID,
			AssetID:    rawSD.assetID,
		}

		switch {
		case rawSD.semanticID == "":
			result.Status = types.SubmodelError
			result.Error = "missing semanticId"
		case len(governance[rawSD.semanticID]) == 0:
			result.Status = types.SubmodelGovernanceNotFound
		default:
			result.Status = types.SubmodelPending
			endpoints[rawSD.submodelID] = rawSD
			byAsset[rawSD.assetID] = append(byAsset[rawSD.assetID], rawSD.submodelID)
		}
		descriptorResults[rawSD.submodelID] = result
	}

	assetIDs := make([]string, 0, len(byAsset))
	for assetID := range byAsset {
		assetIDs = append(assetIDs, assetID)
	}

	type negotiationOutcome struct {
		assetID      string
		dataplaneURL string
		accessToken  string
		err          error
	}
	negotiationTasks := make([]func(ctx context.Context) (negotiationOutcome, error), len(assetIDs))
	for i, assetID := range assetIDs {
		assetID := assetID
		submodelID := byAsset[assetID][0]
		connectorURL := endpoints[submodelID].connectorURL
		semanticID := endpoints[submodelID].semanticID
		policies := governance[semanticID]

		negotiationTasks[i] = func(ctx context.Context) (negotiationOutcome, error) {
			dataplaneURL, accessToken, err := f.negotiation.DoDspByAssetId(ctx, string(bpn), connectorURL, assetID, policies)
			if err != nil {
				logger.Warn().Str("asset_id", assetID).Err(err).Msg("submodel asset negotiation failed")
				return negotiationOutcome{assetID: assetID, err: err}, nil
			}
			return negotiationOutcome{assetID: assetID, dataplaneURL: dataplaneURL, accessToken: accessToken}, nil
		}
	}

	negotiationResults := workerpool.RunAll(ctx, f.negotiationPool, negotiationTasks)
	credentials := make(map[string]negotiationOutcome, len(negotiationResults))
	for _, r := range negotiationResults {
		credentials[r.Value.assetID] = r.Value
	}

	var fetchSubmodelIDs []string
	for assetID, submodelIDs := range byAsset {
		outcome := credentials[assetID]
		if outcome.err != nil {
			for _, submodelID := range submodelIDs {
				result := descriptorResults[submodelID]
				result.Status = types.SubmodelError
				result.Error = outcome.err.Error()
				descriptorResults[submodelID] = result
			}
			continue
		}
		fetchSubmodelIDs = append(fetchSubmodelIDs, submodelIDs...)
	}

	submodels := make(map[string]map[string]any)
	fetchTasks := make([]func(ctx context.Context) (types.SubmodelDescriptorResult, error), len(fetchSubmodelIDs))
	for i, submodelID := range fetchSubmodelIDs {
		submodelID := submodelID
		endpoint := endpoints[submodelID]
		outcome := credentials[endpoint.assetID]

		fetchTasks[i] = func(ctx context.Context) (types.SubmodelDescriptorResult, error) {
			result := descriptorResults[submodelID]
			payload, err := f.fetchSubmodelPayload(ctx, endpoint.href, outcome.accessToken)
			if err != nil {
				result.Status = types.SubmodelError
				result.Error = err.Error()
				return result, nil
			}
			result.Status = types.SubmodelSuccess
			submodels[submodelID] = payload
			return result, nil
		}
	}

	fetchResults := workerpool.RunAll(ctx, f.fetchPool, fetchTasks)
	for _, r := range fetchResults {
		descriptorResults[r.Value.SubmodelID] = r.Value
	}

	found := 0
	for _, result := range descriptorResults {
		if result.Status == types.SubmodelSuccess {
			found++
		}
	}

	if len(shell.SubmodelDescriptors) > 0 {
		dtr = &types.DTR{AssetID: shell.SubmodelDescriptors[0].AssetID, ConnectorURL: shell.SubmodelDescriptors[0].ConnectorURL}
	}

	return types.SubmodelFetchResult{
		SubmodelDescriptors: descriptorResults,
		Submodels:           submodels,
		SubmodelsFound:      found,
		DTR:                 dtr,
	}, nil
}

func (f *SubmodelFetcher) fetchSubmodelPayload(ctx context.Context, href, accessToken string) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUpstreamHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", types.ErrUpstreamHTTP, resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding submodel payload: %w", err)
	}
	return payload, nil
}

// parseRawSubmodelDescriptors walks a raw shell document's
// submodelDescriptors[], parsing each entry's SUBMODEL-3.0
// subprotocolBody to recover the backing asset, connector, and href.
func parseRawSubmodelDescriptors(raw map[string]any) []submodelEndpoint {
	rawDescriptors, _ := raw["submodelDescriptors"].([]any)
	endpoints := make([]submodelEndpoint, 0, len(rawDescriptors))

	for _, entry := range rawDescriptors {
		sm, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		submodelID, _ := sm["id"].(string)
		var semanticID string
		if semantic, ok := sm["semanticId"].(map[string]any); ok {
			if keys, ok := semantic["keys"].([]any); ok && len(keys) > 0 {
				if key, ok := keys[0].(map[string]any); ok {
					semanticID, _ = key["value"].(string)
				}
			}
		}

		assetID, connectorURL, href := parseSubprotocolEndpoint(sm)

		endpoints = append(endpoints, submodelEndpoint{
			submodelID:   submodelID,
			semanticID:   semanticID,
			assetID:      assetID,
			connectorURL: connectorURL,
			href:         href,
		})
	}
	return endpoints
}

// parseSubprotocolEndpoint finds the SUBMODEL-3.0 endpoint of a raw
// submodel descriptor and parses its `;`-delimited subprotocolBody
// key=value string for `id` (assetId) and `dspEndpoint`
// (connectorURL), alongside the endpoint's href.
func parseSubprotocolEndpoint(sm map[string]any) (assetID string, connectorURL types.ConnectorURL, href string) {
	endpointsRaw, _ := sm["endpoints"].([]any)
	for _, e := range endpointsRaw {
		endpoint, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if iface, _ := endpoint["interface"].(string); iface != "SUBMODEL-3.0" {
			continue
		}
		protocolInfo, ok := endpoint["protocolInformation"].(map[string]any)
		if !ok {
			continue
		}
		href, _ = protocolInfo["href"].(string)
		subprotocolBody, _ := protocolInfo["subprotocolBody"].(string)
		for _, pair := range strings.Split(subprotocolBody, ";") {
			k, v, found := strings.Cut(pair, "=")
			if !found {
				continue
			}
			switch k {
			case "id":
				assetID = v
			case "dspEndpoint":
				connectorURL = types.ConnectorURL(v)
			}
		}
		return assetID, connectorURL, href
	}
	return "", "", ""
}
