package catalog

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

type mockProductRepo struct {
	products []product.Product
	listErr  error
	getErr   error
	gets     int
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.listErr
}

func (m *mockProductRepo) ListByBrand(_ context.Context, _ string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, _ []string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) ListBrands(_ context.Context) ([]product.Brand, error) {
	return nil, nil
}

func (m *mockProductRepo) GetBrandBySlug(_ context.Context, _ string) (*product.Brand, error) {
	return nil, product.ErrNotFound
}

func testProducts() []product.Product {
	return []product.Product{
		{ID: "prod-001", Name: "Velvet Matte Lipstick", Price: decimal.NewFromInt(1199)},
		{ID: "prod-002", Name: "Kajal Pencil", Price: decimal.NewFromInt(499)},
	}
}

func TestCatalog_BeforeRefreshUsesRepository(t *testing.T) {
	repo := &mockProductRepo{products: testProducts()}
	c := New(repo)

	p, err := c.GetProductByID(context.Background(), "prod-001")
	require.NoError(t, err)
	assert.Equal(t, "Velvet Matte Lipstick", p.Name)

	_, err = c.GetProductByID(context.Background(), "prod-999")
	require.ErrorIs(t, err, product.ErrNotFound)
	assert.Equal(t, 2, repo.gets)
}

func TestCatalog_RefreshIndexesProducts(t *testing.T) {
	ctx := context.Background()
	repo := &mockProductRepo{products: testProducts()}
	c := New(repo)
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.Size())

	p, err := c.GetProductByID(ctx, "prod-002")
	require.NoError(t, err)
	assert.Equal(t, "Kajal Pencil", p.Name)

	_, err = c.GetProductByID(ctx, "definitely-not-a-product")
	require.ErrorIs(t, err, product.ErrNotFound)
	assert.Equal(t, 2, repo.gets)
	assert.Equal(t, 2, c.Size())
}

func TestCatalog_ProductAddedAfterRefresh(t *testing.T) {
	ctx := context.Background()
	repo := &mockProductRepo{products: testProducts()}
	c := New(repo)
	require.NoError(t, c.Refresh(ctx))

	repo.products = append(repo.products, product.Product{
		ID:    "prod-003",
		Name:  "Nail Enamel",
		Price: decimal.NewFromInt(299),
	})

	p, err := c.GetProductByID(ctx, "prod-003")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Nail Enamel", p.Name)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(299)))
	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, 3, c.Size())

	// Indexed once, not again on the next lookup.
	_, err = c.GetProductByID(ctx, "prod-003")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 3, c.Size())
}

func TestCatalog_RefreshFailureKeepsFilter(t *testing.T) {
	ctx := context.Background()
	repo := &mockProductRepo{products: testProducts()}
	c := New(repo)
	require.NoError(t, c.Refresh(ctx))

	repo.listErr = errors.New("connection refused")
	require.Error(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.Size())

	_, err := c.GetProductByID(ctx, "prod-001")
	require.NoError(t, err)
}

func TestCatalog_RepositoryErrorWrapped(t *testing.T) {
	repo := &mockProductRepo{getErr: errors.New("timeout")}
	c := New(repo)

	_, err := c.GetProductByID(context.Background(), "prod-001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, product.ErrNotFound)
	assert.Contains(t, err.Error(), "prod-001")
}
