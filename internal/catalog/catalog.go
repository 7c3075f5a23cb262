// Package catalog resolves product snapshots for cart lines.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	// minCapacity keeps the filter usable for tiny catalogs.
	minCapacity = 1024
	bloomFPR    = 0.001
)

// Catalog looks products up in the repository and keeps a bloom filter of
// the product ids seen by the last Refresh.
//
// The filter is an index of known ids, not an authority: ids it does not
// contain are still looked up, and those found are added to it. Refresh logs
// how many products were indexed that way.
type Catalog struct {
	repo product.Repository

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	size   int
	misses int
}

// New creates a Catalog backed by repo.
func New(repo product.Repository) *Catalog {
	return &Catalog{repo: repo}
}

// GetProductByID returns the product with the given id, or
// product.ErrNotFound.
func (c *Catalog) GetProductByID(ctx context.Context, id string) (*product.Product, error) {
	indexed := c.mayContain(id)
	p, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	if !indexed {
		c.index(ctx, id)
	}
	return p, nil
}

func (c *Catalog) mayContain(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.filter == nil {
		return true
	}
	return c.filter.TestString(id)
}

// index adds a product found in the repository but missing from the filter.
func (c *Catalog) index(ctx context.Context, id string) {
	c.mu.Lock()
	if c.filter == nil || c.filter.TestString(id) {
		c.mu.Unlock()
		return
	}
	c.filter.AddString(id)
	c.size++
	c.misses++
	c.mu.Unlock()

	zctx.From(ctx).Debug("Indexed product added since last refresh", zap.String("product_id", id))
}

// Refresh rebuilds the known-id filter from the repository.
func (c *Catalog) Refresh(ctx context.Context) error {
	products, err := c.repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	capacity := max(uint(len(products))*2, minCapacity)
	filter := bloom.NewWithEstimates(capacity, bloomFPR)
	for _, p := range products {
		filter.AddString(p.ID)
	}

	c.mu.Lock()
	misses := c.misses
	c.filter = filter
	c.size = len(products)
	c.misses = 0
	c.mu.Unlock()

	if misses > 0 {
		zctx.From(ctx).Info("Catalog index was stale", zap.Int("missed_products", misses))
	}

	return nil
}

// Size returns the number of indexed products.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Start refreshes the filter every interval until ctx is done. Refresh
// failures are logged and the previous filter is kept.
func (c *Catalog) Start(ctx context.Context, interval time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				lg.Warn("Catalog refresh failed", zap.Error(err))
				continue
			}
			lg.Debug("Catalog refreshed", zap.Int("products", c.Size()))
		}
	}
}
