package cart

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
)

// defaultResolveLimit bounds concurrent catalog lookups during a load.
const defaultResolveLimit = 8

// MaxQuantity is the largest quantity a cart line can hold.
const MaxQuantity = math.MaxInt32

// closedCh is returned as the settle channel when nothing is in flight.
var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Options configures a Manager.
type Options struct {
	// StoreTimeout bounds every store call. Zero disables the timeout.
	StoreTimeout time.Duration
	// ResolveLimit bounds concurrent catalog lookups during a load.
	ResolveLimit int
	// Notifier receives a notice for every user-visible outcome.
	// Defaults to LogNotifier.
	Notifier Notifier
	// Metrics is optional.
	Metrics *Metrics
}

// Manager owns the in-memory cart of one session.
//
// Store calls are made without holding the lock, so overlapping mutations
// are possible. Each one reads the in-memory state at call time and applies
// the store's answer afterwards; the store stays authoritative and the next
// Load reconciles any drift.
type Manager struct {
	store        Store
	catalog      Catalog
	notifier     Notifier
	metrics      *Metrics
	timeout      time.Duration
	resolveLimit int

	mu     sync.RWMutex
	userID string
	state  State
	// gen tags loads; a load whose gen is stale when it settles is dropped.
	gen   uint64
	lines []Line
	// settled is closed when the in-flight load settles or is superseded.
	settled chan struct{}
}

// NewManager creates a Manager in the unauthenticated state.
func NewManager(store Store, catalog Catalog, opts Options) *Manager {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.ResolveLimit <= 0 {
		opts.ResolveLimit = defaultResolveLimit
	}
	return &Manager{
		store:        store,
		catalog:      catalog,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		timeout:      opts.StoreTimeout,
		resolveLimit: opts.ResolveLimit,
		state:        StateUnauthenticated,
		settled:      closedCh,
	}
}

// Snapshot returns the current cart with derived totals.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newSnapshot(m.userID, m.state, m.lines)
}

// SetUser handles an identity change. An empty userID signs the session out
// and discards the cart; a new userID loads that user's cart. Setting the
// current identity again is a no-op.
func (m *Manager) SetUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	if userID == m.userID {
		m.mu.Unlock()
		return nil
	}
	if userID == "" {
		m.supersedeLocked()
		m.userID = ""
		m.state = StateUnauthenticated
		m.lines = nil
		m.mu.Unlock()
		return nil
	}
	l := m.beginSessionLocked(userID)
	m.mu.Unlock()

	return m.finishLoad(ctx, l)
}

// beginSession switches an unauthenticated manager to userID and starts its
// first load. The manager is in StateLoading on return.
func (m *Manager) beginSession(userID string) pendingLoad {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beginSessionLocked(userID)
}

func (m *Manager) beginSessionLocked(userID string) pendingLoad {
	m.userID = userID
	m.lines = nil
	return m.beginLoadLocked()
}

// Load replaces the in-memory cart with the user's rows from the store.
//
// A load started while another is pending supersedes it. On store failure
// the cart is emptied and a *StoreError is returned.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.userID == "" {
		m.mu.Unlock()
		return m.fail(ctx, OpLoad, ErrAuthRequired)
	}
	l := m.beginLoadLocked()
	m.mu.Unlock()

	return m.finishLoad(ctx, l)
}

// pendingLoad identifies one load request.
type pendingLoad struct {
	userID  string
	gen     uint64
	settled chan struct{}
}

// supersedeLocked invalidates any in-flight load and wakes its waiters.
func (m *Manager) supersedeLocked() {
	m.gen++
	if m.state == StateLoading {
		close(m.settled)
	}
	m.settled = closedCh
}

func (m *Manager) beginLoadLocked() pendingLoad {
	m.supersedeLocked()
	l := pendingLoad{
		userID:  m.userID,
		gen:     m.gen,
		settled: make(chan struct{}),
	}
	m.settled = l.settled
	m.state = StateLoading
	return l
}

func (m *Manager) finishLoad(ctx context.Context, l pendingLoad) error {
	var rows []Row
	err := m.call(ctx, OpLoad, func(ctx context.Context) (err error) {
		rows, err = m.store.List(ctx, l.userID)
		return err
	})
	var lines []Line
	if err == nil {
		lines = m.resolveLines(ctx, rows)
	}

	m.mu.Lock()
	if m.gen != l.gen {
		m.mu.Unlock()
		zctx.From(ctx).Debug("Dropped superseded cart load", zap.String("user_id", l.userID))
		return nil
	}
	m.state = StateReady
	close(l.settled)
	m.settled = closedCh
	if err != nil {
		m.lines = nil
		m.mu.Unlock()
		return m.fail(ctx, OpLoad, err)
	}
	m.lines = lines
	m.mu.Unlock()

	m.metrics.operation(ctx, OpLoad, outcomeOK)
	return nil
}

// resolveLines attaches product snapshots to rows. Lookups run concurrently;
// rows whose product cannot be resolved keep a placeholder snapshot.
func (m *Manager) resolveLines(ctx context.Context, rows []Row) []Line {
	lines := make([]Line, len(rows))

	var g errgroup.Group
	g.SetLimit(m.resolveLimit)
	for i, row := range rows {
		g.Go(func() error {
			lines[i] = Line{
				ID:        row.ID,
				ProductID: row.ProductID,
				Quantity:  row.Quantity,
				Product:   m.resolve(ctx, row.ProductID),
			}
			return nil
		})
	}
	_ = g.Wait()

	return lines
}

func (m *Manager) resolve(ctx context.Context, productID string) ProductSnapshot {
	p, err := m.catalog.GetProductByID(ctx, productID)
	if err != nil || p == nil {
		uerr := &ProductUnresolvedError{ProductID: productID}
		if !errors.Is(err, product.ErrNotFound) {
			uerr.Err = err
		}
		zctx.From(ctx).Warn("Cart line product unresolved", zap.Error(uerr))
		return placeholder(productID)
	}
	return snapshotOf(*p)
}

// session waits for any in-flight load to settle and returns the signed-in
// user.
func (m *Manager) session(ctx context.Context) (string, error) {
	for {
		m.mu.RLock()
		userID, state, settled := m.userID, m.state, m.settled
		m.mu.RUnlock()

		switch state {
		case StateUnauthenticated:
			return "", ErrAuthRequired
		case StateReady:
			return userID, nil
		}

		select {
		case <-settled:
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "wait for cart load")
		}
	}
}

// AddToCart adds quantity units of a product. If the cart already holds the
// product, the existing line's quantity is increased instead.
func (m *Manager) AddToCart(ctx context.Context, productID string, quantity int) (Line, error) {
	userID, err := m.session(ctx)
	if err != nil {
		return Line{}, m.fail(ctx, OpAdd, err)
	}
	if quantity < 1 || quantity > MaxQuantity {
		return Line{}, m.fail(ctx, OpAdd, ErrInvalidQuantity)
	}

	if existing, ok := m.lineByProduct(productID); ok {
		if existing.Quantity > MaxQuantity-quantity {
			return Line{}, m.fail(ctx, OpAdd, ErrInvalidQuantity)
		}
		line, err := m.setQuantity(ctx, userID, existing.ID, existing.Quantity+quantity)
		switch {
		case err == nil:
			m.succeed(ctx, OpAdd, addedNotice(line.Product.Name))
			return line, nil
		case errors.Is(err, ErrLineNotFound):
			// Deleted elsewhere since the last load: forget it and insert.
			m.dropLine(userID, existing.ID)
		default:
			return Line{}, m.fail(ctx, OpAdd, err)
		}
	}

	var row Row
	err = m.call(ctx, OpAdd, func(ctx context.Context) (err error) {
		row, err = m.store.Insert(ctx, userID, productID, quantity)
		return err
	})
	if err != nil {
		return Line{}, m.fail(ctx, OpAdd, err)
	}

	line := Line{
		ID:        row.ID,
		ProductID: row.ProductID,
		Quantity:  row.Quantity,
		Product:   m.resolve(ctx, productID),
	}

	m.mu.Lock()
	if m.userID == userID {
		m.upsertLocked(line)
	}
	m.mu.Unlock()

	m.succeed(ctx, OpAdd, addedNotice(line.Product.Name))
	return line, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line.
func (m *Manager) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return m.RemoveFromCart(ctx, lineID)
	}
	userID, err := m.session(ctx)
	if err != nil {
		return m.fail(ctx, OpUpdate, err)
	}
	if quantity > MaxQuantity {
		return m.fail(ctx, OpUpdate, ErrInvalidQuantity)
	}
	if _, err := m.setQuantity(ctx, userID, lineID, quantity); err != nil {
		return m.fail(ctx, OpUpdate, err)
	}
	m.succeed(ctx, OpUpdate, updatedNotice)
	return nil
}

// setQuantity writes a quantity to the store and, once confirmed, to memory.
func (m *Manager) setQuantity(ctx context.Context, userID, lineID string, quantity int) (Line, error) {
	var row Row
	err := m.call(ctx, OpUpdate, func(ctx context.Context) (err error) {
		row, err = m.store.UpdateQuantity(ctx, userID, lineID, quantity)
		return err
	})
	if err != nil {
		return Line{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	line := Line{ID: row.ID, ProductID: row.ProductID, Quantity: row.Quantity}
	if m.userID != userID {
		line.Product = placeholder(row.ProductID)
		return line, nil
	}
	for i := range m.lines {
		if m.lines[i].ID == lineID {
			m.lines[i].Quantity = row.Quantity
			return m.lines[i], nil
		}
	}
	line.Product = placeholder(row.ProductID)
	return line, nil
}

// RemoveFromCart deletes a line. Removing a line that is already gone
// succeeds and leaves the cart unchanged.
func (m *Manager) RemoveFromCart(ctx context.Context, lineID string) error {
	userID, err := m.session(ctx)
	if err != nil {
		return m.fail(ctx, OpRemove, err)
	}

	err = m.call(ctx, OpRemove, func(ctx context.Context) error {
		return m.store.Delete(ctx, userID, lineID)
	})
	if err != nil {
		return m.fail(ctx, OpRemove, err)
	}

	m.dropLine(userID, lineID)
	m.succeed(ctx, OpRemove, removedNotice)
	return nil
}

// ClearCart deletes every line of the signed-in user. Callers must only
// clear after an order has been durably created.
func (m *Manager) ClearCart(ctx context.Context) error {
	userID, err := m.session(ctx)
	if err != nil {
		return m.fail(ctx, OpClear, err)
	}

	err = m.call(ctx, OpClear, func(ctx context.Context) error {
		return m.store.DeleteAll(ctx, userID)
	})
	if err != nil {
		return m.fail(ctx, OpClear, err)
	}

	m.mu.Lock()
	if m.userID == userID {
		m.lines = nil
	}
	m.mu.Unlock()

	m.metrics.operation(ctx, OpClear, outcomeOK)
	return nil
}

// dropLine removes a line from memory if userID still owns the session.
func (m *Manager) dropLine(userID, lineID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID != userID {
		return
	}
	kept := make([]Line, 0, len(m.lines))
	for _, l := range m.lines {
		if l.ID != lineID {
			kept = append(kept, l)
		}
	}
	m.lines = kept
}

func (m *Manager) lineByProduct(productID string) (Line, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// upsertLocked replaces the line with the same id or appends it. The store
// merges concurrent inserts of one product into a single row, so an insert
// may return a row the cache already holds.
func (m *Manager) upsertLocked(line Line) {
	for i := range m.lines {
		if m.lines[i].ID == line.ID {
			m.lines[i] = line
			return
		}
	}
	m.lines = append(m.lines, line)
}

// call runs fn under the store timeout and converts failures into
// *StoreError, except ErrLineNotFound which is passed through.
func (m *Manager) call(ctx context.Context, op Op, fn func(ctx context.Context) error) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	m.metrics.storeCall(ctx, op, time.Since(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLineNotFound):
		return ErrLineNotFound
	default:
		return &StoreError{Op: op, Err: err}
	}
}

func (m *Manager) succeed(ctx context.Context, op Op, n Notice) {
	m.metrics.operation(ctx, op, outcomeOK)
	m.notifier.Notify(ctx, n)
}

// fail reports err for op and returns it unchanged.
func (m *Manager) fail(ctx context.Context, op Op, err error) error {
	outcome := outcomeError
	if errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrInvalidQuantity) {
		outcome = outcomeRejected
	}
	m.metrics.operation(ctx, op, outcome)

	zctx.From(ctx).Warn("Cart operation failed",
		zap.String("op", string(op)),
		zap.Error(err),
	)
	m.notifier.Notify(ctx, FailureNotice(op, err))
	return err
}
