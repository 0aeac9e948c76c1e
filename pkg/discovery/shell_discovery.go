// Package discovery implements ShellDiscovery and SubmodelFetcher: the
// paginated cross-DTR shell lookup and the per-shell submodel negotiation
// and fetch, both grounded on discover_shells/discover_shell and the
// submodel-fetch path of the original dtr_consumer_memory_manager.
package discovery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/dcat"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/negotiation"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/pagination"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// QueryParam is one (name, value) term of a shells-by-asset-link query.
type QueryParam struct {
	Name  string
	Value string
}

// QuerySpec is the ordered list of query terms sent to a DTR's
// shellsByAssetLink lookup.
type QuerySpec []QueryParam

const (
	DefaultMaxRetries     = 2
	DefaultLookupTimeout  = 30 * time.Second
	unlimitedPageFetchCap = 1000
)

// ShellDiscovery fans a shellsByAssetLink query out across every DTR
// known for a BPN, paginating across DTR-scoped sub-cursors.
type ShellDiscovery struct {
	dtrs        *cache.DtrCache
	negotiation negotiation.Port
	shells      *cache.ShellStore
	httpClient  *http.Client

	maxRetries    int
	lookupTimeout time.Duration
}

// Config configures ShellDiscovery's retry and timeout behavior.
type Config struct {
	MaxRetries    int
	LookupTimeout time.Duration
}

// New creates a ShellDiscovery backed by dtrs, port and shells.
func New(cfg Config, dtrs *cache.DtrCache, port negotiation.Port, shells *cache.ShellStore) *ShellDiscovery {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	return &ShellDiscovery{
		dtrs:          dtrs,
		negotiation:   port,
		shells:        shells,
		httpClient:    &http.Client{},
		maxRetries:    cfg.MaxRetries,
		lookupTimeout: cfg.LookupTimeout,
	}
}

// DiscoverShells returns every shell descriptor whose asset links match
// querySpec, across all DTRs known for bpn, paginated by limit/cursor.
func (d *ShellDiscovery) DiscoverShells(ctx context.Context, bpn types.BPN, querySpec QuerySpec, limit *int, cursor string) (types.DiscoverResult, error) {
	logger := log.WithComponent("shell_discovery")
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ShellDiscoveryDuration, string(bpn))

	dtrs, err := d.dtrs.GetDtrs(ctx, bpn)
	if err != nil {
		return types.DiscoverResult{}, fmt.Errorf("resolving dtrs for bpn %s: %w", bpn, err)
	}
	if len(dtrs) == 0 {
		return types.DiscoverResult{}, nil
	}

	previousState, err := pagination.Decode(cursor)
	if err != nil {
		logger.Warn().Str("bpn", string(bpn)).Msg("malformed pagination cursor, restarting from page 0")
	}
	if cursor != "" && !pagination.IsCompatible(previousState, limit) {
		return types.DiscoverResult{}, fmt.Errorf("%w: cursor was issued with a different limit", types.ErrLimitMismatch)
	}

	active := activeDtrs(dtrs, previousState)
	perDtrLimit := unlimitedPageFetchCap
	if limit != nil {
		perDtrLimit = pagination.DistributeLimit(*limit, len(active))
	}

	newDtrStates := make(map[string]types.DtrCursor, len(dtrs))
	for _, dtr := range dtrs {
		if cursorState, ok := previousState.DtrStates[dtr.AssetID]; ok {
			newDtrStates[dtr.AssetID] = cursorState
		}
	}

	var (
		shellDescriptors []types.ShellDescriptor
		perDtrResults    []types.PerDtrResult
		shellsFound      int
	)

	for _, dtr := range active {
		if limit != nil && shellsFound >= *limit {
			break
		}

		startCursor := ""
		if state, ok := previousState.DtrStates[dtr.AssetID]; ok {
			startCursor = state.Cursor
		}

		lookup, lookupErr := d.lookupDtrWithRetry(ctx, bpn, dtr, querySpec, perDtrLimit, startCursor)
		if lookupErr != nil {
			d.dtrs.DeleteDtr(bpn, dtr.AssetID)
			perDtrResults = append(perDtrResults, types.PerDtrResult{
				ConnectorURL: dtr.ConnectorURL,
				AssetID:      dtr.AssetID,
				Status:       types.PerDtrFailed,
				Error:        lookupErr.Error(),
			})
			newDtrStates[dtr.AssetID] = types.DtrCursor{AssetID: dtr.AssetID, Exhausted: true}
			continue
		}
		nextCursor := lookup.nextCursor

		descriptors := d.fetchShellDescriptors(ctx, lookup.dataplaneURL, lookup.accessToken, lookup.shellIDs)
		for _, sd := range descriptors {
			d.shells.Put(sd.ShellID, sd)
		}
		shellDescriptors = append(shellDescriptors, descriptors...)
		shellsFound += len(descriptors)

		newDtrStates[dtr.AssetID] = types.DtrCursor{
			AssetID:   dtr.AssetID,
			Cursor:    nextCursor,
			Exhausted: nextCursor == "",
		}
		perDtrResults = append(perDtrResults, types.PerDtrResult{
			ConnectorURL: dtr.ConnectorURL,
			AssetID:      dtr.AssetID,
			Status:       types.PerDtrSuccess,
			ShellCount:   len(descriptors),
		})
	}

	if limit != nil && shellsFound > *limit {
		shellDescriptors = shellDescriptors[:*limit]
		shellsFound = *limit
	}

	newState := &types.PageState{
		DtrStates:     newDtrStates,
		PageNumber:    previousState.PageNumber + 1,
		Limit:         limit,
		PreviousState: previousState,
	}

	result := types.DiscoverResult{
		ShellDescriptors: shellDescriptors,
		PerDtrResults:    perDtrResults,
		ShellsFound:      shellsFound,
	}

	if limit != nil || cursor != "" {
		p := &types.Pagination{Page: newState.PageNumber}
		if pagination.HasMoreData(newState.DtrStates) {
			p.Next = pagination.Encode(newState)
		}
		if previousState.PageNumber > 0 {
			p.Previous = pagination.Encode(previousState)
		}
		result.Pagination = p
	}

	metrics.ShellsDiscoveredTotal.WithLabelValues(string(bpn)).Add(float64(shellsFound))
	return result, nil
}

// activeDtrs returns the DTRs not yet marked exhausted in state. A DTR
// absent from state is implicitly active (first page).
func activeDtrs(dtrs []types.DTR, state *types.PageState) []types.DTR {
	if state == nil {
		return dtrs
	}
	active := make([]types.DTR, 0, len(dtrs))
	for _, dtr := range dtrs {
		if cursor, ok := state.DtrStates[dtr.AssetID]; ok && cursor.Exhausted {
			continue
		}
		active = append(active, dtr)
	}
	return active
}

// dtrLookupResult carries a successful shellsByAssetLink lookup's raw
// shell IDs alongside the dataplane credentials used to obtain them, so
// callers can fetch full descriptors without renegotiating.
type dtrLookupResult struct {
	shellIDs     []string
	nextCursor   string
	dataplaneURL string
	accessToken  string
}

func (d *ShellDiscovery) lookupDtrWithRetry(ctx context.Context, bpn types.BPN, dtr types.DTR, querySpec QuerySpec, limit int, cursor string) (dtrLookupResult, error) {
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			queryChecksum, policyChecksum := negotiationKeyParts(dtr)
			_ = d.negotiation.DeleteConnection(ctx, string(bpn), dtr.ConnectorURL, queryChecksum, policyChecksum)
		}

		result, err := d.lookupDtrOnce(ctx, bpn, dtr, querySpec, limit, cursor)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return dtrLookupResult{}, lastErr
}

func (d *ShellDiscovery) lookupDtrOnce(ctx context.Context, bpn types.BPN, dtr types.DTR, querySpec QuerySpec, limit int, cursor string) (dtrLookupResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.lookupTimeout)
	defer cancel()

	dataplaneURL, accessToken, err := d.negotiation.DoDspByAssetId(callCtx, string(bpn), dtr.ConnectorURL, dtr.AssetID, dtr.Policies)
	if err != nil {
		return dtrLookupResult{}, fmt.Errorf("negotiating edr: %w", err)
	}

	url := fmt.Sprintf("%s/lookup/shellsByAssetLink?limit=%d", dataplaneURL, limit)
	if cursor != "" {
		url += "&cursor=" + cursor
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, jsonBody(querySpec))
	if err != nil {
		return dtrLookupResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return dtrLookupResult{}, fmt.Errorf("%w: %v", types.ErrUpstreamHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return dtrLookupResult{}, fmt.Errorf("%w: status %d", types.ErrUpstreamHTTP, resp.StatusCode)
	}

	var parsed struct {
		Result         []string `json:"result"`
		PagingMetadata struct {
			Cursor string `json:"cursor"`
		} `json:"paging_metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return dtrLookupResult{}, fmt.Errorf("decoding shells-by-asset-link response: %w", err)
	}
	return dtrLookupResult{
		shellIDs:     parsed.Result,
		nextCursor:   parsed.PagingMetadata.Cursor,
		dataplaneURL: dataplaneURL,
		accessToken:  accessToken,
	}, nil
}

// fetchShellDescriptors retrieves every shell ID's full descriptor in
// parallel, tolerating individual failures (a missing descriptor just
// does not appear in the result).
func (d *ShellDiscovery) fetchShellDescriptors(ctx context.Context, dataplaneURL, accessToken string, shellIDs []string) []types.ShellDescriptor {
	if len(shellIDs) == 0 {
		return nil
	}

	type result struct {
		descriptor types.ShellDescriptor
		ok         bool
	}
	resultsCh := make(chan result, len(shellIDs))
	for _, shellID := range shellIDs {
		shellID := shellID
		go func() {
			descriptor, err := d.getShellDescriptor(ctx, dataplaneURL, accessToken, shellID)
			if err != nil {
				resultsCh <- result{}
				return
			}
			resultsCh <- result{descriptor: descriptor, ok: true}
		}()
	}

	descriptors := make([]types.ShellDescriptor, 0, len(shellIDs))
	for range shellIDs {
		r := <-resultsCh
		if r.ok {
			descriptors = append(descriptors, r.descriptor)
		}
	}
	return descriptors
}

func (d *ShellDiscovery) getShellDescriptor(ctx context.Context, dataplaneURL, accessToken, shellID string) (types.ShellDescriptor, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.lookupTimeout)
	defer cancel()

	encodedID := base64.StdEncoding.EncodeToString([]byte(shellID))
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, dataplaneURL+"/shell-descriptors/"+encodedID, nil)
	if err != nil {
		return types.ShellDescriptor{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return types.ShellDescriptor{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.ShellDescriptor{}, fmt.Errorf("%w: status %d", types.ErrUpstreamHTTP, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.ShellDescriptor{}, err
	}

	return types.ShellDescriptor{
		ShellID:             shellID,
		Raw:                 raw,
		SubmodelDescriptors: submodelDescriptorsOf(raw),
	}, nil
}

// DiscoverShell fetches a single shell by ID, unpaginated. It probes the
// shared shell store first; on a miss it scans every DTR for bpn with a
// single-result lookup scoped to that shell, the concrete fill-in for
// the upstream discover_shell stub.
func (d *ShellDiscovery) DiscoverShell(ctx context.Context, bpn types.BPN, shellID string) (*types.ShellDescriptor, error) {
	if sd, ok := d.shells.Get(shellID); ok {
		return &sd, nil
	}

	dtrs, err := d.dtrs.GetDtrs(ctx, bpn)
	if err != nil {
		return nil, fmt.Errorf("resolving dtrs for bpn %s: %w", bpn, err)
	}

	one := 1
	for _, dtr := range dtrs {
		lookup, err := d.lookupDtrWithRetry(ctx, bpn, dtr, QuerySpec{{Name: "id", Value: shellID}}, one, "")
		if err != nil || len(lookup.shellIDs) == 0 {
			continue
		}
		descriptors := d.fetchShellDescriptors(ctx, lookup.dataplaneURL, lookup.accessToken, lookup.shellIDs)
		if len(descriptors) == 0 {
			continue
		}
		d.shells.Put(descriptors[0].ShellID, descriptors[0])
		return &descriptors[0], nil
	}
	return nil, types.ErrNotFound
}

// submodelDescriptorsOf extracts the submodelDescriptors[] entries a shell
// document carries, each one's assetID/connectorURL/href coming from that
// submodel's own SUBMODEL-3.0 subprotocolBody rather than the owning DTR's
// identity — a shell's submodels can each be served by a different asset
// and connector than the registry that listed them.
func submodelDescriptorsOf(raw map[string]any) []types.SubmodelDescriptor {
	rawDescriptors := parseRawSubmodelDescriptors(raw)
	if len(rawDescriptors) == 0 {
		return nil
	}

	descriptors := make([]types.SubmodelDescriptor, 0, len(rawDescriptors))
	for _, rawSD := range rawDescriptors {
		descriptors = append(descriptors, types.SubmodelDescriptor{
			SubmodelID:   rawSD.submodelID,
			SemanticID:   rawSD.semanticID,
			AssetID:      rawSD.assetID,
			ConnectorURL: rawSD.connectorURL,
			Href:         rawSD.href,
		})
	}
	return descriptors
}

func negotiationKeyParts(dtr types.DTR) (queryChecksum, policyChecksum string) {
	return dcat.Checksum(map[string]string{"assetId": dtr.AssetID}), dcat.Checksum(dtr.Policies)
}

func jsonBody(v any) *bytes.Reader {
	encoded, _ := json.Marshal(v)
	return bytes.NewReader(encoded)
}
