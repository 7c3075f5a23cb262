package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// opCheckout labels checkout failures; it is not a cart.Manager operation.
const opCheckout cart.Op = "checkout"

// badRequestError reports a request body or parameter that could not be
// parsed.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// apiError is the JSON error body.
type apiError struct {
	code    int
	message string
	notice  *cart.Notice
}

func (e apiError) encode(enc *jx.Encoder) {
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.code) })
		enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.message) })
		if e.notice != nil {
			enc.Field("notice", func(enc *jx.Encoder) {
				enc.Obj(func(enc *jx.Encoder) {
					enc.Field("title", func(enc *jx.Encoder) { enc.Str(e.notice.Title) })
					enc.Field("description", func(enc *jx.Encoder) { enc.Str(e.notice.Description) })
				})
			})
		}
	})
}

// classify maps a domain error to its HTTP status and public message.
func classify(err error) (int, string) {
	var (
		validation *order.ValidationError
		bad        *badRequestError
	)
	switch {
	case errors.Is(err, cart.ErrAuthRequired), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, cart.ErrAuthRequired.Error()
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, cart.ErrInvalidQuantity.Error()
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, validation.Error()
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, cart.ErrLineNotFound.Error()
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, order.ErrNotFound.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, product.ErrNotFound.Error()
	case errors.Is(err, cart.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, cart.ErrStoreUnavailable.Error()
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusConflict, order.ErrEmptyCart.Error()
	case errors.Is(err, order.ErrCartLoading):
		return http.StatusConflict, order.ErrCartLoading.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func checkoutNotice(status int, err error) cart.Notice {
	n := cart.Notice{Level: cart.LevelError, Title: "Checkout failed"}
	switch {
	case status == http.StatusUnauthorized:
		n.Title = "Authentication required"
		n.Description = "Please sign in to place an order"
	case errors.Is(err, order.ErrEmptyCart):
		n.Description = "Your cart is empty"
	case errors.Is(err, order.ErrCartLoading):
		n.Description = "Your cart is still loading, please try again"
	case status == http.StatusUnprocessableEntity:
		n.Description = "Please check your details and try again"
	default:
		n.Description = "Unable to place your order"
	}
	return n
}

// fail writes the error response for err. A non-empty op attaches the
// user-facing notice for that operation.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op cart.Op, err error) {
	code, msg := classify(err)
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("op", string(op)),
			zap.Error(err),
		)
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
	}

	body := apiError{code: code, message: msg}
	switch op {
	case "":
	case opCheckout:
		n := checkoutNotice(code, err)
		body.notice = &n
	default:
		n := cart.FailureNotice(op, err)
		body.notice = &n
	}

	var e jx.Encoder
	body.encode(&e)
	writeJSON(w, code, &e)
}
