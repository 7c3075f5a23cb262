package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
)

// session returns the signed-in user's cart manager, loading it on first use.
func (h *Handler) session(r *http.Request) (*cart.Manager, auth.Identity, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, auth.Identity{}, cart.ErrAuthRequired
	}
	m, err := h.carts.Acquire(r.Context(), id.UserID)
	if err != nil {
		return nil, id, err
	}
	return m, id, nil
}

// getCart returns the caller's cart. Anonymous callers get an empty cart.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		h.writeSnapshot(w, http.StatusOK, cart.Snapshot{
			State: cart.StateUnauthenticated,
			Total: decimal.Zero,
		})
		return
	}
	m, _, err := h.session(r)
	if err != nil {
		h.fail(w, r, cart.OpLoad, err)
		return
	}
	h.writeSnapshot(w, http.StatusOK, m.Snapshot())
}

func (h *Handler) reloadCart(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.fail(w, r, cart.OpLoad, cart.ErrAuthRequired)
		return
	}
	m, err := h.carts.Reload(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, cart.OpLoad, err)
		return
	}
	h.writeSnapshot(w, http.StatusOK, m.Snapshot())
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	m, _, err := h.session(r)
	if err != nil {
		h.fail(w, r, cart.OpAdd, err)
		return
	}

	var (
		productID string
		quantity  = 1
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = d.Str()
		case "quantity":
			quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && productID == "" {
		err = badRequest("product_id is required")
	}
	if err != nil {
		h.fail(w, r, cart.OpAdd, err)
		return
	}

	if _, err := m.AddToCart(r.Context(), productID, quantity); err != nil {
		h.fail(w, r, cart.OpAdd, err)
		return
	}
	h.writeSnapshot(w, http.StatusCreated, m.Snapshot())
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	m, _, err := h.session(r)
	if err != nil {
		h.fail(w, r, cart.OpUpdate, err)
		return
	}

	var (
		quantity int
		seen     bool
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		seen = true
		var err error
		quantity, err = d.Int()
		return err
	})
	if err == nil && !seen {
		err = badRequest("quantity is required")
	}
	if err != nil {
		h.fail(w, r, cart.OpUpdate, err)
		return
	}

	if err := m.UpdateQuantity(r.Context(), r.PathValue("id"), quantity); err != nil {
		op := cart.OpUpdate
		if quantity <= 0 {
			op = cart.OpRemove
		}
		h.fail(w, r, op, err)
		return
	}
	h.writeSnapshot(w, http.StatusOK, m.Snapshot())
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	m, _, err := h.session(r)
	if err != nil {
		h.fail(w, r, cart.OpRemove, err)
		return
	}
	if err := m.RemoveFromCart(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, cart.OpRemove, err)
		return
	}
	h.writeSnapshot(w, http.StatusOK, m.Snapshot())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	m, _, err := h.session(r)
	if err != nil {
		h.fail(w, r, cart.OpClear, err)
		return
	}
	if err := m.ClearCart(r.Context()); err != nil {
		h.fail(w, r, cart.OpClear, err)
		return
	}
	h.writeSnapshot(w, http.StatusOK, m.Snapshot())
}

// logout signs the session out and drops the user's cart manager.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.fail(w, r, "", cart.ErrAuthRequired)
		return
	}
	if err := h.auth.Revoke(r.Context(), id); err != nil {
		h.fail(w, r, "", err)
		return
	}
	h.carts.SignOut(r.Context(), id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, code int, s cart.Snapshot) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(s.State.String()) })
		e.Field("is_loading", func(e *jx.Encoder) { e.Bool(s.IsLoading) })
		e.Field("item_count", func(e *jx.Encoder) { e.Int(s.ItemCount) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, s.Total) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range s.Lines {
					h.encodeLine(e, l)
				}
			})
		})
	})
	writeJSON(w, code, &e)
}

func (h *Handler) encodeLine(e *jx.Encoder, l cart.Line) {
	p := l.Product
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, l.Subtotal()) })
		e.Field("product", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
				e.Field("slug", func(e *jx.Encoder) { e.Str(p.Slug) })
				e.Field("image", func(e *jx.Encoder) { e.Str(h.image(p.Image)) })
				e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
				e.Field("sale_price", func(e *jx.Encoder) { encodeNullDecimal(e, p.SalePrice) })
				e.Field("resolved", func(e *jx.Encoder) { e.Bool(p.Resolved) })
			})
		})
	})
}
