package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Registry holds one Manager per signed-in user. It is the explicit session
// object owned by the service root; managers are created and loaded on the
// user's first request and discarded on sign-out or after IdleTimeout
// without use.
type Registry struct {
	newManager  func() *Manager
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	m        *Manager
	lastUsed time.Time
}

// NewRegistry creates a Registry that builds managers with newManager.
// Managers unused for idleTimeout are signed out by Run; zero keeps them
// until sign-out.
func NewRegistry(newManager func() *Manager, idleTimeout time.Duration) *Registry {
	return &Registry{
		newManager:  newManager,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}
}

// Acquire returns the manager for userID, creating and loading it on first
// use. When that first load fails the manager is still returned along with
// the error, but it is not retained, so the next Acquire loads again.
func (r *Registry) Acquire(ctx context.Context, userID string) (*Manager, error) {
	m, _, err := r.acquire(ctx, userID)
	return m, err
}

func (r *Registry) acquire(ctx context.Context, userID string) (m *Manager, created bool, err error) {
	if userID == "" {
		return nil, false, ErrAuthRequired
	}

	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		s.lastUsed = r.now()
		r.mu.Unlock()
		return s.m, false, nil
	}
	m = r.newManager()
	l := m.beginSession(userID)
	r.sessions[userID] = &entry{m: m, lastUsed: r.now()}
	r.mu.Unlock()

	if err := m.finishLoad(ctx, l); err != nil {
		r.forget(userID, m)
		return m, true, err
	}
	return m, true, nil
}

// Reload forces a fresh load of the user's cart from the store.
func (r *Registry) Reload(ctx context.Context, userID string) (*Manager, error) {
	m, created, err := r.acquire(ctx, userID)
	if err != nil || created {
		return m, err
	}
	if err := m.Load(ctx); err != nil {
		return m, err
	}
	return m, nil
}

// SignOut resets the user's manager to the unauthenticated state and drops
// it. Managers still referenced by in-flight requests stop syncing.
func (r *Registry) SignOut(ctx context.Context, userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		_ = s.m.SetUser(ctx, "")
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RegisterMetrics reports the number of live sessions as the cart.sessions
// gauge.
func (r *Registry) RegisterMetrics(meter metric.Meter) error {
	_, err := meter.Int64ObservableGauge("cart.sessions",
		metric.WithDescription("Signed-in users with a cart in memory"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(r.Len()))
			return nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "sessions gauge")
	}
	return nil
}

// evict signs out every session unused since before now-idleTimeout and
// returns how many it dropped.
func (r *Registry) evict(ctx context.Context, now time.Time) int {
	var idle []*Manager
	r.mu.Lock()
	for userID, s := range r.sessions {
		if now.Sub(s.lastUsed) > r.idleTimeout {
			idle = append(idle, s.m)
			delete(r.sessions, userID)
		}
	}
	r.mu.Unlock()

	for _, m := range idle {
		_ = m.SetUser(ctx, "")
	}
	return len(idle)
}

// Run evicts idle sessions until ctx is done. It returns nil at once when
// the registry has no idle timeout.
func (r *Registry) Run(ctx context.Context) error {
	if r.idleTimeout <= 0 {
		return nil
	}
	lg := zctx.From(ctx)
	ticker := time.NewTicker(r.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.evict(ctx, r.now()); n > 0 {
				lg.Debug("Evicted idle carts", zap.Int("evicted", n), zap.Int("sessions", r.Len()))
			}
		}
	}
}

func (r *Registry) forget(userID string, m *Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok && s.m == m {
		delete(r.sessions, userID)
	}
}
