package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/events"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/metrics"
)

// DefaultSyncInterval is used when Mirror.runSyncLoop's caller supplies a
// non-positive interval.
const DefaultSyncInterval = 30 * time.Second

// Mirror synchronizes one in-memory cache's snapshot with a single
// PostgreSQL table, in the shape T the cache natively snapshots to. It
// never returns store errors to its caller: the in-memory cache is
// always authoritative, and I/O failures are logged and swallowed.
type Mirror[T any] struct {
	name   string
	pool   *pgxpool.Pool
	broker *events.Broker
	logger zerolog.Logger

	snapshot func() T
	replace  func(T)
	saveRows func(ctx context.Context, pool *pgxpool.Pool, snapshot T) error
	loadRows func(ctx context.Context, pool *pgxpool.Pool) (T, error)

	mu            sync.Mutex
	lastSavedHash string
	stopCh        chan struct{}
}

// NewMirror creates a Mirror named name (used in logs and the
// persistence-saved event message), backed by pool, whose snapshot/replace pair connects
// it to an in-memory cache and whose saveRows/loadRows pair implements
// the table-specific SQL.
func NewMirror[T any](
	name string,
	pool *pgxpool.Pool,
	broker *events.Broker,
	snapshot func() T,
	replace func(T),
	saveRows func(ctx context.Context, pool *pgxpool.Pool, snapshot T) error,
	loadRows func(ctx context.Context, pool *pgxpool.Pool) (T, error),
) *Mirror[T] {
	return &Mirror[T]{
		name:     name,
		pool:     pool,
		broker:   broker,
		logger:   log.WithComponent("persistence." + name),
		snapshot: snapshot,
		replace:  replace,
		saveRows: saveRows,
		loadRows: loadRows,
		stopCh:   make(chan struct{}),
	}
}

// Start loads the table into the cache once, then begins the mirror's
// periodic save/load loop in a goroutine.
func (m *Mirror[T]) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	m.loadFromStore(ctx)
	go m.runSyncLoop(ctx, interval)
}

// Stop signals the sync loop to flush once more and exit.
func (m *Mirror[T]) Stop() {
	close(m.stopCh)
}

// runSyncLoop ticks every interval, saving then loading (a peer replica
// may have written newer data since our last load). On ctx cancellation
// or Stop, it flushes once more via saveToStore before returning.
func (m *Mirror[T]) runSyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("persistence mirror started")

	for {
		select {
		case <-ticker.C:
			timer := metrics.NewTimer()
			m.saveToStore(ctx)
			m.loadFromStore(ctx)
			timer.ObserveDuration(metrics.PersistenceSyncDuration)
			metrics.PersistenceSyncCyclesTotal.WithLabelValues("ok").Inc()
		case <-ctx.Done():
			m.saveToStore(context.Background())
			m.logger.Info().Msg("persistence mirror stopped on context cancellation")
			return
		case <-m.stopCh:
			m.saveToStore(context.Background())
			m.logger.Info().Msg("persistence mirror stopped")
			return
		}
	}
}

// saveToStore writes the current snapshot to the table iff it differs
// from the last snapshot this Mirror saved.
func (m *Mirror[T]) saveToStore(ctx context.Context) {
	snapshot := m.snapshot()

	hash, err := canonicalHash(snapshot)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to hash snapshot, skipping save")
		return
	}

	m.mu.Lock()
	unchanged := hash == m.lastSavedHash
	m.mu.Unlock()
	if unchanged {
		metrics.PersistenceSaveSkippedTotal.Inc()
		return
	}

	if err := m.saveRows(ctx, m.pool, snapshot); err != nil {
		m.logger.Error().Err(err).Msg("persistence save failed")
		metrics.PersistenceSyncCyclesTotal.WithLabelValues("save_failed").Inc()
		m.publish(events.EventPersistenceFailed, "save failed: "+err.Error())
		return
	}

	m.mu.Lock()
	m.lastSavedHash = hash
	m.mu.Unlock()
	m.publish(events.EventPersistenceSaved, "saved "+m.name)
}

// loadFromStore replaces the in-memory cache with the table's current
// contents, then updates lastSavedHash so the following tick's save is a
// no-op absent new mutations.
func (m *Mirror[T]) loadFromStore(ctx context.Context) {
	loaded, err := m.loadRows(ctx, m.pool)
	if err != nil {
		m.logger.Error().Err(err).Msg("persistence load failed")
		metrics.PersistenceSyncCyclesTotal.WithLabelValues("load_failed").Inc()
		m.publish(events.EventPersistenceFailed, "load failed: "+err.Error())
		return
	}

	m.replace(loaded)

	hash, err := canonicalHash(loaded)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.lastSavedHash = hash
	m.mu.Unlock()
}

func (m *Mirror[T]) publish(eventType events.EventType, message string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{Type: eventType, Message: message})
}

// canonicalHash returns the hex SHA-256 digest of v's JSON encoding.
// encoding/json already sorts map[K]V keys for any string-kind K, which
// is sufficient canonicalization for the map-shaped snapshots every
// Mirror instance in this package handles.
func canonicalHash(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
