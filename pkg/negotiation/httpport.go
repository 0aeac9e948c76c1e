package negotiation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/dcat"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// Config configures HTTPPort's OAuth2 client-credentials token acquisition
// and per-counterparty circuit breaking.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	RequestTimeout time.Duration

	// CircuitBreakerMaxFailures trips the breaker for a counterparty
	// address after this many consecutive failures.
	CircuitBreakerMaxFailures uint32
	// CircuitBreakerOpenTimeout is how long the breaker stays open
	// before allowing a single trial request through.
	CircuitBreakerOpenTimeout time.Duration
}

const (
	DefaultRequestTimeout            = 30 * time.Second
	DefaultCircuitBreakerMaxFailures = 5
	DefaultCircuitBreakerOpenTimeout = 30 * time.Second
)

// HTTPPort is the concrete dataspace-SDK client: it acquires OAuth2 tokens
// via client-credentials, performs the DSP catalog/negotiation/transfer
// HTTP exchange per counterparty behind a dedicated circuit breaker, and
// caches the resulting EDRs in a cache.EDRStore.
type HTTPPort struct {
	httpClient *http.Client
	edrs       *cache.EDRStore
	broker     *events.Broker

	cfg Config

	breakersMu sync.Mutex
	breakers   map[types.ConnectorURL]*gobreaker.CircuitBreaker
}

// NewHTTPPort creates an HTTPPort. edrs and broker may be shared with the
// rest of the hub; broker may be nil in tests that do not care about
// negotiation events.
func NewHTTPPort(cfg Config, edrs *cache.EDRStore, broker *events.Broker) *HTTPPort {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.CircuitBreakerMaxFailures == 0 {
		cfg.CircuitBreakerMaxFailures = DefaultCircuitBreakerMaxFailures
	}
	if cfg.CircuitBreakerOpenTimeout == 0 {
		cfg.CircuitBreakerOpenTimeout = DefaultCircuitBreakerOpenTimeout
	}

	ccCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	return &HTTPPort{
		httpClient: ccCfg.Client(context.Background()),
		edrs:       edrs,
		broker:     broker,
		cfg:        cfg,
		breakers:   make(map[types.ConnectorURL]*gobreaker.CircuitBreaker),
	}
}

func (p *HTTPPort) breakerFor(counterPartyAddress types.ConnectorURL) *gobreaker.CircuitBreaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()

	if b, ok := p.breakers[counterPartyAddress]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    string(counterPartyAddress),
		Timeout: p.cfg.CircuitBreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.cfg.CircuitBreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	p.breakers[counterPartyAddress] = b
	return b
}

// GetCatalog performs the raw DCAT catalog request. Satisfies
// pkg/catalog.CatalogFetcher.
func (p *HTTPPort) GetCatalog(ctx context.Context, counterPartyAddress types.ConnectorURL, filterExpression types.FilterExpression) (map[string]any, error) {
	body := map[string]any{
		"@context":            map[string]string{"dct": "http://purl.org/dc/terms/", "odrl": "http://www.w3.org/ns/odrl/2/"},
		"@type":               "CatalogRequest",
		"counterPartyAddress": string(counterPartyAddress),
		"querySpec": map[string]any{
			"filterExpression": []map[string]string{{
				"operandLeft":  filterExpression.Key,
				"operator":     filterExpression.Operator,
				"operandRight": filterExpression.Value,
			}},
		},
	}

	catalog, err := p.doBreaker(ctx, counterPartyAddress, func(ctx context.Context) (map[string]any, error) {
		return p.postJSON(ctx, string(counterPartyAddress)+"/catalog/request", body)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUpstreamHTTP, err)
	}
	return catalog, nil
}

// DoDsp obtains or reuses an EDR for (counterPartyID, counterPartyAddress,
// filterExpression, policies).
func (p *HTTPPort) DoDsp(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, policies []types.Policy, filterExpression types.FilterExpression) (string, string, error) {
	if len(policies) == 0 {
		return "", "", types.ErrNoPolicies
	}

	key := types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       dcat.Checksum(filterExpression),
		PolicyChecksum:      dcat.Checksum(policies),
	}
	return p.negotiate(ctx, key, policies, map[string]any{"filterExpression": filterExpression})
}

// DoDspByAssetId obtains or reuses an EDR for an asset-scoped negotiation.
func (p *HTTPPort) DoDspByAssetId(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, assetID string, policies []types.Policy) (string, string, error) {
	if len(policies) == 0 {
		return "", "", types.ErrNoPolicies
	}

	key := types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       dcat.Checksum(map[string]string{"assetId": assetID}),
		PolicyChecksum:      dcat.Checksum(policies),
	}
	return p.negotiate(ctx, key, policies, map[string]any{"assetId": assetID})
}

func (p *HTTPPort) negotiate(ctx context.Context, key types.EDRKey, policies []types.Policy, target map[string]any) (string, string, error) {
	logger := log.WithComponent("negotiation_http_port")

	if edr, ok := p.edrs.Get(key); ok {
		return edr.DataplaneURL, edr.AccessToken, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.NegotiationDuration)

	connectorURL := types.ConnectorURL(key.CounterPartyAddress)
	exchange, err := p.doBreakerExchange(ctx, connectorURL, func(ctx context.Context) (exchangeResult, error) {
		return p.runNegotiationExchange(ctx, key, policies, target)
	})
	if err != nil {
		metrics.NegotiationsTotal.WithLabelValues("failed").Inc()
		if p.broker != nil {
			p.broker.Publish(&events.Event{
				Type:     events.EventNegotiationFailed,
				Message:  err.Error(),
				Metadata: map[string]string{"counter_party_id": key.CounterPartyID},
			})
		}
		logger.Warn().Str("counter_party_id", key.CounterPartyID).Err(err).Msg("negotiation failed")
		return "", "", fmt.Errorf("%w: %v", types.ErrNegotiationFailed, err)
	}

	metrics.NegotiationsTotal.WithLabelValues("success").Inc()
	p.edrs.Put(key, types.EDR{
		TransferID:          exchange.transferID,
		CounterPartyID:      key.CounterPartyID,
		CounterPartyAddress: key.CounterPartyAddress,
		QueryChecksum:       key.QueryChecksum,
		PolicyChecksum:      key.PolicyChecksum,
		DataplaneURL:        exchange.dataplaneURL,
		AccessToken:         exchange.accessToken,
		CreatedAt:           time.Now(),
	})
	return exchange.dataplaneURL, exchange.accessToken, nil
}

// exchangeResult is the outcome of a full contract-negotiation plus
// transfer-process handshake.
type exchangeResult struct {
	transferID   string
	dataplaneURL string
	accessToken  string
}

// runNegotiationExchange drives the DSP contract-negotiation and
// transfer-process handshake to completion: negotiate a contract
// agreement over the requested policies, then start a transfer process
// and retrieve the dataplane's endpoint data reference.
func (p *HTTPPort) runNegotiationExchange(ctx context.Context, key types.EDRKey, policies []types.Policy, target map[string]any) (exchangeResult, error) {
	negotiationReq := map[string]any{
		"@type":               "ContractRequest",
		"counterPartyId":      key.CounterPartyID,
		"counterPartyAddress": key.CounterPartyAddress,
		"policy":              policies[0],
		"target":              target,
	}
	negotiation, err := p.postJSON(ctx, key.CounterPartyAddress+"/contractnegotiations", negotiationReq)
	if err != nil {
		return exchangeResult{}, fmt.Errorf("contract negotiation request: %w", err)
	}
	negotiationID, _ := negotiation["@id"].(string)
	if negotiationID == "" {
		return exchangeResult{}, fmt.Errorf("contract negotiation response missing @id")
	}

	transferReq := map[string]any{
		"@type":               "TransferRequest",
		"counterPartyId":      key.CounterPartyID,
		"counterPartyAddress": key.CounterPartyAddress,
		"contractId":          negotiationID,
		"transferType":        "HttpData-PULL",
	}
	transfer, err := p.postJSON(ctx, key.CounterPartyAddress+"/transferprocesses", transferReq)
	if err != nil {
		return exchangeResult{}, fmt.Errorf("transfer process request: %w", err)
	}
	transferID, _ := transfer["@id"].(string)
	if transferID == "" {
		return exchangeResult{}, fmt.Errorf("transfer process response missing @id")
	}

	edrDetails, err := p.getJSON(ctx, key.CounterPartyAddress+"/edrs/"+transferID+"/dataaddress")
	if err != nil {
		return exchangeResult{}, fmt.Errorf("edr lookup: %w", err)
	}
	dataplaneURL, _ := edrDetails["endpoint"].(string)
	accessToken, _ := edrDetails["authorization"].(string)
	if dataplaneURL == "" {
		return exchangeResult{}, fmt.Errorf("edr response missing endpoint")
	}
	return exchangeResult{transferID: transferID, dataplaneURL: dataplaneURL, accessToken: accessToken}, nil
}

// DeleteConnection invalidates the EDR for the given key's 4-tuple and
// best-effort notifies the counterparty's transfer process endpoint. The
// remote call's failure does not prevent local invalidation: callers rely
// on DeleteConnection to force a fresh negotiation on the next attempt.
func (p *HTTPPort) DeleteConnection(ctx context.Context, counterPartyID string, counterPartyAddress types.ConnectorURL, queryChecksum string, policyChecksum string) error {
	key := types.EDRKey{
		CounterPartyID:      counterPartyID,
		CounterPartyAddress: string(counterPartyAddress),
		QueryChecksum:       queryChecksum,
		PolicyChecksum:      policyChecksum,
	}

	edr, ok := p.edrs.Get(key)
	p.edrs.Delete(key)
	if !ok {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, string(counterPartyAddress)+"/transferprocesses/"+edr.TransferID, nil)
	if err != nil {
		return nil
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.WithComponent("negotiation_http_port").Debug().Err(err).Msg("best-effort transfer termination failed")
		return nil
	}
	defer resp.Body.Close()
	return nil
}

func (p *HTTPPort) doBreaker(ctx context.Context, counterPartyAddress types.ConnectorURL, fn func(context.Context) (map[string]any, error)) (map[string]any, error) {
	result, err := p.breakerFor(counterPartyAddress).Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (p *HTTPPort) doBreakerExchange(ctx context.Context, counterPartyAddress types.ConnectorURL, fn func(context.Context) (exchangeResult, error)) (exchangeResult, error) {
	result, err := p.breakerFor(counterPartyAddress).Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return exchangeResult{}, err
	}
	return result.(exchangeResult), nil
}

func (p *HTTPPort) postJSON(ctx context.Context, url string, body any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req)
}

func (p *HTTPPort) getJSON(ctx context.Context, url string) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return p.do(req)
}

func (p *HTTPPort) do(req *http.Request) (map[string]any, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s returned %d: %s", req.URL, resp.StatusCode, string(raw))
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return parsed, nil
}
