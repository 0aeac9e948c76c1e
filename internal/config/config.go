// Package config loads the discovery hub's runtime configuration from
// environment variables: read an override from the environment, fall back
// to a sensible default. cmd/ichub-discover's cobra flags take precedence over
// these when both are set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/cache"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/discovery"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/negotiation"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

// Config is the fully-resolved set of tunables needed to start the
// discovery hub.
type Config struct {
	LogLevel    string
	LogJSON     bool
	MetricsAddr string

	PostgresDSN  string
	SyncInterval time.Duration

	ConnectorTTL   time.Duration
	DtrTTL         time.Duration
	HarvestTimeout time.Duration

	ShellCacheCapacity int
	DiscoveryRetries   int
	DiscoveryTimeout   time.Duration

	SubmodelNegotiationPoolCap int
	SubmodelFetchPoolCap       int
	SubmodelFetchTimeout       time.Duration

	DiscoveryServiceURL string

	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthScopes       []string

	CircuitBreakerMaxFailures uint32
	CircuitBreakerOpenTimeout time.Duration

	DtrFilterKey      string
	DtrFilterOperator string
	DtrFilterValue    string
}

// FromEnv reads Config from the process environment, applying the same
// defaults each wired subcomponent would apply on its own when a Config
// field is left zero.
func FromEnv() (Config, error) {
	cfg := Config{
		LogLevel:    getEnv("ICHUB_LOG_LEVEL", "info"),
		LogJSON:     getEnvBool("ICHUB_LOG_JSON", false),
		MetricsAddr: getEnv("ICHUB_METRICS_ADDR", ":9090"),

		PostgresDSN:  getEnv("ICHUB_POSTGRES_DSN", ""),
		SyncInterval: getEnvDuration("ICHUB_SYNC_INTERVAL", 30*time.Second),

		ConnectorTTL:   getEnvDuration("ICHUB_CONNECTOR_TTL", cache.DefaultTTL),
		DtrTTL:         getEnvDuration("ICHUB_DTR_TTL", cache.DefaultTTL),
		HarvestTimeout: getEnvDuration("ICHUB_HARVEST_TIMEOUT", 60*time.Second),

		ShellCacheCapacity: getEnvInt("ICHUB_SHELL_CACHE_CAPACITY", cache.DefaultShellStoreCapacity),
		DiscoveryRetries:   getEnvInt("ICHUB_DISCOVERY_RETRIES", discovery.DefaultMaxRetries),
		DiscoveryTimeout:   getEnvDuration("ICHUB_DISCOVERY_TIMEOUT", discovery.DefaultLookupTimeout),

		SubmodelNegotiationPoolCap: getEnvInt("ICHUB_SUBMODEL_NEGOTIATION_POOL_CAP", 10),
		SubmodelFetchPoolCap:       getEnvInt("ICHUB_SUBMODEL_FETCH_POOL_CAP", 20),
		SubmodelFetchTimeout:       getEnvDuration("ICHUB_SUBMODEL_FETCH_TIMEOUT", 30*time.Second),

		DiscoveryServiceURL: getEnv("ICHUB_DISCOVERY_SERVICE_URL", ""),

		OAuthTokenURL:     getEnv("ICHUB_OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("ICHUB_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("ICHUB_OAUTH_CLIENT_SECRET", ""),

		CircuitBreakerMaxFailures: uint32(getEnvInt("ICHUB_CIRCUIT_BREAKER_MAX_FAILURES", negotiation.DefaultCircuitBreakerMaxFailures)),
		CircuitBreakerOpenTimeout: getEnvDuration("ICHUB_CIRCUIT_BREAKER_OPEN_TIMEOUT", negotiation.DefaultCircuitBreakerOpenTimeout),

		DtrFilterKey:      getEnv("ICHUB_DTR_FILTER_KEY", cache.DefaultDtrTypeFilter.Key),
		DtrFilterOperator: getEnv("ICHUB_DTR_FILTER_OPERATOR", cache.DefaultDtrTypeFilter.Operator),
		DtrFilterValue:    getEnv("ICHUB_DTR_FILTER_VALUE", cache.DefaultDtrTypeFilter.Value),
	}

	if cfg.DiscoveryServiceURL == "" {
		return Config{}, fmt.Errorf("config: ICHUB_DISCOVERY_SERVICE_URL is required")
	}
	if cfg.OAuthTokenURL == "" {
		return Config{}, fmt.Errorf("config: ICHUB_OAUTH_TOKEN_URL is required")
	}

	return cfg, nil
}

// NegotiationConfig projects the OAuth2/circuit-breaker fields into a
// negotiation.Config.
func (c Config) NegotiationConfig() negotiation.Config {
	return negotiation.Config{
		TokenURL:                  c.OAuthTokenURL,
		ClientID:                  c.OAuthClientID,
		ClientSecret:              c.OAuthClientSecret,
		Scopes:                    c.OAuthScopes,
		RequestTimeout:            c.DiscoveryTimeout,
		CircuitBreakerMaxFailures: c.CircuitBreakerMaxFailures,
		CircuitBreakerOpenTimeout: c.CircuitBreakerOpenTimeout,
	}
}

// DtrTypeFilter projects the filter-expression fields into a
// cache.DtrTypeFilter.
func (c Config) DtrTypeFilter() cache.DtrTypeFilter {
	return cache.DtrTypeFilter{
		FilterExpression: types.FilterExpression{
			Key:      c.DtrFilterKey,
			Operator: c.DtrFilterOperator,
			Value:    c.DtrFilterValue,
		},
		DctType: c.DtrFilterValue,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
