package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

// checkout places an order from the caller's cart.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	m, id, err := h.session(r)
	if err != nil {
		h.fail(w, r, opCheckout, err)
		return
	}

	var req order.CheckoutRequest
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "first_name":
			dst = &req.Contact.FirstName
		case "last_name":
			dst = &req.Contact.LastName
		case "email":
			dst = &req.Contact.Email
		case "phone":
			dst = &req.Contact.Phone
		case "address":
			dst = &req.Shipping.Address
		case "city":
			dst = &req.Shipping.City
		case "state":
			dst = &req.Shipping.State
		case "zip":
			dst = &req.Shipping.Zip
		case "payment_method":
			v, err := d.Str()
			req.PaymentMethod = order.PaymentMethod(v)
			return err
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
	if err != nil {
		h.fail(w, r, opCheckout, err)
		return
	}

	res, err := h.orders.Checkout(r.Context(), m, id.UserID, req)
	if err != nil {
		h.fail(w, r, opCheckout, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { h.encodeOrder(e, res.Order) })
		e.Field("cart_cleared", func(e *jx.Encoder) { e.Bool(res.CartCleared) })
	})
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.fail(w, r, "", cart.ErrAuthRequired)
		return
	}
	orders, err := h.orders.List(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			h.encodeOrder(e, &orders[i])
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.fail(w, r, "", cart.ErrAuthRequired)
		return
	}
	o, err := h.orders.Get(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	var e jx.Encoder
	h.encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
		e.Field("item_count", func(e *jx.Encoder) { e.Int(o.ItemCount()) })
		e.Field("contact", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("first_name", func(e *jx.Encoder) { e.Str(o.Contact.FirstName) })
				e.Field("last_name", func(e *jx.Encoder) { e.Str(o.Contact.LastName) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Contact.Email) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(o.Contact.Phone) })
			})
		})
		e.Field("shipping", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("address", func(e *jx.Encoder) { e.Str(o.Shipping.Address) })
				e.Field("city", func(e *jx.Encoder) { e.Str(o.Shipping.City) })
				e.Field("state", func(e *jx.Encoder) { e.Str(o.Shipping.State) })
				e.Field("zip", func(e *jx.Encoder) { e.Str(o.Shipping.Zip) })
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
					})
				}
			})
		})
		e.Field("payment", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(o.Payment.ID) })
				e.Field("method", func(e *jx.Encoder) { e.Str(string(o.Payment.Method)) })
				e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Payment.Status)) })
				e.Field("amount", func(e *jx.Encoder) { encodeDecimal(e, o.Payment.Amount) })
			})
		})
	})
}
