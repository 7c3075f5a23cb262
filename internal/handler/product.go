package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

// listProducts returns the catalog, optionally filtered by ?brand=slug.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		products []product.Product
		err      error
	)
	if slug := r.URL.Query().Get("brand"); slug != "" {
		var brand *product.Brand
		brand, err = h.products.GetBrandBySlug(ctx, slug)
		if err == nil {
			products, err = h.products.ListByBrand(ctx, brand.ID)
		}
	} else {
		products, err = h.products.List(ctx)
	}
	if err != nil {
		h.fail(w, r, "", errors.Wrap(err, "list products"))
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			h.encodeProduct(e, p)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "", errors.Wrap(err, "get product"))
		return
	}

	var e jx.Encoder
	h.encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.products.ListBrands(r.Context())
	if err != nil {
		h.fail(w, r, "", errors.Wrap(err, "list brands"))
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, b := range brands {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(b.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(b.Name) })
				e.Field("slug", func(e *jx.Encoder) { e.Str(b.Slug) })
				e.Field("description", func(e *jx.Encoder) { e.Str(b.Description) })
				e.Field("logo_url", func(e *jx.Encoder) { e.Str(h.image(b.LogoURL)) })
				e.Field("cover_image_url", func(e *jx.Encoder) { e.Str(h.image(b.CoverImageURL)) })
			})
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	images := make([]string, len(p.ImageURLs))
	for i, u := range p.ImageURLs {
		images[i] = h.image(u)
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("slug", func(e *jx.Encoder) { e.Str(p.Slug) })
		e.Field("brand_id", func(e *jx.Encoder) { e.Str(p.BrandID) })
		e.Field("category_id", func(e *jx.Encoder) { e.Str(p.CategoryID) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("sale_price", func(e *jx.Encoder) { encodeNullDecimal(e, p.SalePrice) })
		e.Field("effective_price", func(e *jx.Encoder) { encodeDecimal(e, p.EffectivePrice()) })
		e.Field("image_urls", func(e *jx.Encoder) { encodeStrings(e, images) })
		e.Field("featured", func(e *jx.Encoder) { e.Bool(p.Featured) })
		e.Field("best_seller", func(e *jx.Encoder) { e.Bool(p.BestSeller) })
		e.Field("new_arrival", func(e *jx.Encoder) { e.Bool(p.NewArrival) })
	})
}
