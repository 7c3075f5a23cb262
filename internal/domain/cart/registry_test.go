package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestRegistry(store *mockStore, catalog *mockCatalog) *Registry {
	return newIdleRegistry(store, catalog, 0)
}

func newIdleRegistry(store *mockStore, catalog *mockCatalog, idle time.Duration) *Registry {
	return NewRegistry(func() *Manager {
		return NewManager(store, catalog, Options{Notifier: &recordingNotifier{}})
	}, idle)
}

func TestRegistry_AcquireLoadsOnce(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.seed("alice", "p1", 2)
	reg := newTestRegistry(store, newCatalog(newTestProduct("p1", "Kajal", "5")))

	m1, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, m1.Snapshot().Lines, 1)
	calls := store.callCount()

	m2, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, calls, store.callCount())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_AcquireAnonymous(t *testing.T) {
	reg := newTestRegistry(&mockStore{}, newCatalog())

	m, err := reg.Acquire(context.Background(), "")
	require.ErrorIs(t, err, ErrAuthRequired)
	assert.Nil(t, m)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_FailedFirstLoadNotRetained(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{listErr: errors.New("network down")}
	reg := newTestRegistry(store, newCatalog())

	m, err := reg.Acquire(ctx, "alice")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotNil(t, m)
	assert.Equal(t, 0, reg.Len())

	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()

	m2, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, m, m2)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Reload(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	reg := newTestRegistry(store, newCatalog(newTestProduct("p1", "Kajal", "5")))

	m, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, m.Snapshot().Lines)

	// Written by another device.
	store.seed("alice", "p1", 3)

	m2, err := reg.Reload(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, m, m2)
	require.Len(t, m.Snapshot().Lines, 1)
	assert.Equal(t, 3, m.Snapshot().ItemCount)
}

func TestRegistry_SignOut(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.seed("alice", "p1", 1)
	reg := newTestRegistry(store, newCatalog(newTestProduct("p1", "Kajal", "5")))

	m, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)

	reg.SignOut(ctx, "alice")
	assert.Equal(t, 0, reg.Len())

	snap := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Empty(t, snap.Lines)

	_, err = m.AddToCart(ctx, "p1", 1)
	require.ErrorIs(t, err, ErrAuthRequired)

	// Unknown users are ignored.
	reg.SignOut(ctx, "bob")
}

func TestRegistry_ConcurrentAcquireWaitsForFirstLoad(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.seed("alice", "p1", 2)
	release := make(chan struct{})
	store.listHook = func(ctx context.Context, _ string) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	reg := newTestRegistry(store, newCatalog(newTestProduct("p1", "Kajal", "5")))

	first := make(chan error, 1)
	go func() {
		_, err := reg.Acquire(ctx, "alice")
		first <- err
	}()
	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, time.Millisecond)

	m, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.Equal(t, "alice", snap.UserID)

	added := make(chan error, 1)
	go func() {
		_, err := m.AddToCart(ctx, "p1", 1)
		added <- err
	}()

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-added)
	assert.Equal(t, 3, m.Snapshot().ItemCount)
}

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.seed("alice", "p1", 1)
	reg := newIdleRegistry(store, newCatalog(newTestProduct("p1", "Kajal", "5")), 30*time.Minute)

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	reg.now = func() time.Time { return now }

	alice, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	bob, err := reg.Acquire(ctx, "bob")
	require.NoError(t, err)

	now = start.Add(20 * time.Minute)
	_, err = reg.Acquire(ctx, "bob")
	require.NoError(t, err)

	assert.Zero(t, reg.evict(ctx, start.Add(30*time.Minute)))
	assert.Equal(t, 1, reg.evict(ctx, start.Add(31*time.Minute)))
	assert.Equal(t, 1, reg.Len())

	snap := alice.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Empty(t, snap.Lines)
	assert.Equal(t, StateReady, bob.Snapshot().State)

	// The next request loads a fresh manager.
	now = start.Add(32 * time.Minute)
	again, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, alice, again)
	assert.Equal(t, 1, again.Snapshot().ItemCount)
}

func TestRegistry_RunWithoutIdleTimeout(t *testing.T) {
	reg := newTestRegistry(&mockStore{}, newCatalog())
	require.NoError(t, reg.Run(context.Background()))
}

func TestRegistry_SessionsGauge(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	reg := newTestRegistry(&mockStore{}, newCatalog())
	require.NoError(t, reg.RegisterMetrics(provider.Meter("cart")))

	_, err := reg.Acquire(ctx, "alice")
	require.NoError(t, err)
	_, err = reg.Acquire(ctx, "bob")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	got := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "cart.sessions", got.Name)
	gauge, ok := got.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.EqualValues(t, 2, gauge.DataPoints[0].Value)
}
