package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

type fakeFetcher struct {
	mu        sync.Mutex
	catalogs  map[types.ConnectorURL]map[string]any
	errs      map[types.ConnectorURL]error
	delay     map[types.ConnectorURL]time.Duration
	callCount int
}

func (f *fakeFetcher) GetCatalog(ctx context.Context, counterPartyAddress types.ConnectorURL, filterExpression types.FilterExpression) (map[string]any, error) {
	f.mu.Lock()
	f.callCount++
	f.mu.Unlock()

	if d, ok := f.delay[counterPartyAddress]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[counterPartyAddress]; ok {
		return nil, err
	}
	return f.catalogs[counterPartyAddress], nil
}

func TestHarvestCollectsAllSuccessfulConnectors(t *testing.T) {
	fetcher := &fakeFetcher{
		catalogs: map[types.ConnectorURL]map[string]any{
			"https://edc-a": {"dcat:dataset": []any{map[string]any{"@id": "a"}}},
			"https://edc-b": {"dcat:dataset": []any{map[string]any{"@id": "b"}}},
		},
	}
	h := New(fetcher)

	got := h.Harvest(context.Background(), []types.ConnectorURL{"https://edc-a", "https://edc-b"}, types.FilterExpression{}, time.Second)

	assert.Len(t, got, 2)
	assert.Equal(t, 2, fetcher.callCount)
}

func TestHarvestSkipsFailingConnectors(t *testing.T) {
	fetcher := &fakeFetcher{
		catalogs: map[types.ConnectorURL]map[string]any{
			"https://edc-a": {"dcat:dataset": []any{}},
		},
		errs: map[types.ConnectorURL]error{
			"https://edc-b": errors.New("connection refused"),
		},
	}
	h := New(fetcher)

	got := h.Harvest(context.Background(), []types.ConnectorURL{"https://edc-a", "https://edc-b"}, types.FilterExpression{}, time.Second)

	assert.Len(t, got, 1)
	_, ok := got["https://edc-b"]
	assert.False(t, ok)
}

func TestHarvestTimesOutSlowConnectorsIndependently(t *testing.T) {
	fetcher := &fakeFetcher{
		catalogs: map[types.ConnectorURL]map[string]any{
			"https://edc-fast": {"dcat:dataset": []any{}},
			"https://edc-slow": {"dcat:dataset": []any{}},
		},
		delay: map[types.ConnectorURL]time.Duration{
			"https://edc-slow": 200 * time.Millisecond,
		},
	}
	h := New(fetcher)

	start := time.Now()
	got := h.Harvest(context.Background(), []types.ConnectorURL{"https://edc-fast", "https://edc-slow"}, types.FilterExpression{}, 20*time.Millisecond)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 150*time.Millisecond, "harvest should not block on the slow connector past its own timeout")
	_, ok := got["https://edc-slow"]
	assert.False(t, ok)
	_, ok = got["https://edc-fast"]
	assert.True(t, ok)
}

func TestHarvestEmptyConnectorList(t *testing.T) {
	h := New(&fakeFetcher{})
	got := h.Harvest(context.Background(), nil, types.FilterExpression{}, time.Second)
	assert.Empty(t, got)
}
