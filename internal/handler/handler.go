// Package handler serves the storefront JSON API over net/http.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 64 << 10

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Authenticator resolves bearer tokens and signs sessions out.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	Revoke(ctx context.Context, id auth.Identity) error
}

// Handler serves the catalog, cart, checkout and order history endpoints.
type Handler struct {
	products     product.Repository
	carts        *cart.Registry
	orders       *order.Service
	auth         Authenticator
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts *cart.Registry,
	orders *order.Service,
	authenticator Authenticator,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		auth:         authenticator,
		imageBaseURL: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/brands", h.listBrands)

	withIdentity := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.authenticate(fn))
	}
	withIdentity("GET /api/cart", h.getCart)
	withIdentity("DELETE /api/cart", h.clearCart)
	withIdentity("POST /api/cart/reload", h.reloadCart)
	withIdentity("POST /api/cart/items", h.addItem)
	withIdentity("PATCH /api/cart/items/{id}", h.updateItem)
	withIdentity("DELETE /api/cart/items/{id}", h.removeItem)
	withIdentity("POST /api/checkout", h.checkout)
	withIdentity("GET /api/orders", h.listOrders)
	withIdentity("GET /api/orders/{id}", h.getOrder)
	withIdentity("POST /api/session/logout", h.logout)
}

// image resolves p against the configured image base URL.
func (h *Handler) image(p string) string {
	if p == "" || h.imageBaseURL == "" || strings.Contains(p, "://") {
		return p
	}
	return h.imageBaseURL + "/" + strings.TrimPrefix(p, "/")
}
