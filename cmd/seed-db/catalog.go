package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

type brandJSON struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	LogoURL       string `json:"logo_url"`
	CoverImageURL string `json:"cover_image_url"`
}

type productJSON struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	BrandID     string              `json:"brand_id"`
	CategoryID  string              `json:"category_id"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	ImageURLs   []string            `json:"image_urls"`
	Featured    bool                `json:"featured"`
	BestSeller  bool                `json:"best_seller"`
	NewArrival  bool                `json:"new_arrival"`
}

type catalogJSON struct {
	Brands   []brandJSON   `json:"brands"`
	Products []productJSON `json:"products"`
}

// seedCatalog is the decoded seed file in domain types.
type seedCatalog struct {
	Brands   []product.Brand
	Products []product.Product
}

// readCatalogFile reads a catalog seed file. Files ending in .gz are
// decompressed with pgzip.
func readCatalogFile(path string) (*seedCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return decodeCatalog(r)
}

func decodeCatalog(r io.Reader) (*seedCatalog, error) {
	var raw catalogJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}

	brands := make(map[string]bool, len(raw.Brands))
	out := &seedCatalog{
		Brands:   make([]product.Brand, len(raw.Brands)),
		Products: make([]product.Product, len(raw.Products)),
	}
	for i, b := range raw.Brands {
		if b.ID == "" || b.Slug == "" {
			return nil, errors.Errorf("brand %d: id and slug are required", i)
		}
		brands[b.ID] = true
		out.Brands[i] = product.Brand{
			ID:            b.ID,
			Name:          b.Name,
			Slug:          b.Slug,
			Description:   b.Description,
			LogoURL:       b.LogoURL,
			CoverImageURL: b.CoverImageURL,
		}
	}
	for i, p := range raw.Products {
		switch {
		case p.ID == "" || p.Slug == "":
			return nil, errors.Errorf("product %d: id and slug are required", i)
		case !brands[p.BrandID]:
			return nil, errors.Errorf("product %s: unknown brand %q", p.ID, p.BrandID)
		case p.Price.IsNegative():
			return nil, errors.Errorf("product %s: negative price", p.ID)
		}
		out.Products[i] = product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Slug:        p.Slug,
			BrandID:     p.BrandID,
			CategoryID:  p.CategoryID,
			Description: p.Description,
			Price:       p.Price,
			SalePrice:   p.SalePrice,
			ImageURLs:   p.ImageURLs,
			Featured:    p.Featured,
			BestSeller:  p.BestSeller,
			NewArrival:  p.NewArrival,
		}
	}
	return out, nil
}
