package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `id, name, slug, brand_id, category_id, description, price, sale_price,
		image_urls, featured, best_seller, new_arrival`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	listProductsByBrandSQL = `SELECT ` + productColumns + ` FROM products WHERE brand_id = $1 ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	listBrandsSQL = `SELECT id, name, slug, description, logo_url, cover_image_url FROM brands ORDER BY name`

	getBrandBySlugSQL = `SELECT id, name, slug, description, logo_url, cover_image_url FROM brands WHERE slug = $1`

	upsertBrandSQL = `INSERT INTO brands (id, name, slug, description, logo_url, cover_image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug,
			description = EXCLUDED.description, logo_url = EXCLUDED.logo_url,
			cover_image_url = EXCLUDED.cover_image_url`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug,
			brand_id = EXCLUDED.brand_id, category_id = EXCLUDED.category_id,
			description = EXCLUDED.description, price = EXCLUDED.price,
			sale_price = EXCLUDED.sale_price, image_urls = EXCLUDED.image_urls,
			featured = EXCLUDED.featured, best_seller = EXCLUDED.best_seller,
			new_arrival = EXCLUDED.new_arrival`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListByBrand returns the brand's products ordered by ID.
func (r *ProductRepository) ListByBrand(ctx context.Context, brandID string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsByBrandSQL, brandID)
	if err != nil {
		return nil, fmt.Errorf("listing products of brand %q: %w", brandID, err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListBrands returns all brands ordered by name.
func (r *ProductRepository) ListBrands(ctx context.Context) ([]product.Brand, error) {
	rows, err := r.pool.Query(ctx, listBrandsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing brands: %w", err)
	}
	return pgx.CollectRows(rows, scanBrand)
}

// GetBrandBySlug returns the brand with the given slug.
func (r *ProductRepository) GetBrandBySlug(ctx context.Context, slug string) (*product.Brand, error) {
	rows, err := r.pool.Query(ctx, getBrandBySlugSQL, slug)
	if err != nil {
		return nil, fmt.Errorf("getting brand %q: %w", slug, err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBrand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting brand %q: %w", slug, err)
	}
	return &b, nil
}

// Upsert writes brands and products in one transaction, replacing rows with
// the same id.
func (r *ProductRepository) Upsert(ctx context.Context, brands []product.Brand, products []product.Product) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, b := range brands {
		batch.Queue(upsertBrandSQL, b.ID, b.Name, b.Slug, b.Description, b.LogoURL, b.CoverImageURL)
	}
	for _, p := range products {
		images := p.ImageURLs
		if images == nil {
			images = []string{}
		}
		batch.Queue(upsertProductSQL,
			p.ID, p.Name, p.Slug, p.BrandID, p.CategoryID, p.Description,
			p.Price, p.SalePrice, images, p.Featured, p.BestSeller, p.NewArrival,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting catalog: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.BrandID, &p.CategoryID, &p.Description,
		&p.Price, &p.SalePrice, &p.ImageURLs,
		&p.Featured, &p.BestSeller, &p.NewArrival,
	)
	return p, err
}

func scanBrand(row pgx.CollectableRow) (product.Brand, error) {
	var b product.Brand
	err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Description, &b.LogoURL, &b.CoverImageURL)
	return b, err
}
