package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product or brand does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Slug        string
	BrandID     string
	CategoryID  string
	Description string
	Price       decimal.Decimal
	SalePrice   decimal.NullDecimal
	ImageURLs   []string
	Featured    bool
	BestSeller  bool
	NewArrival  bool
}

// EffectivePrice returns the sale price when one is set, otherwise the
// regular price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// Image returns the primary product image, or "" when the product has none.
func (p Product) Image() string {
	if len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

// Brand groups products on the storefront brand pages.
type Brand struct {
	ID            string
	Name          string
	Slug          string
	Description   string
	LogoURL       string
	CoverImageURL string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListByBrand(ctx context.Context, brandID string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	ListBrands(ctx context.Context) ([]Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (*Brand, error)
}
