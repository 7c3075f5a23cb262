package order

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
)

// minPhoneLen is the shortest accepted phone number.
const minPhoneLen = 10

// Sentinel errors for checkout.
var (
	ErrEmptyCart   = errors.New("cart is empty")
	ErrCartLoading = errors.New("cart is still loading")
	ErrNotFound    = errors.New("order not found")
)

// ValidationError reports a checkout form field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CartSession is the part of a cart manager that checkout consumes.
type CartSession interface {
	Snapshot() cart.Snapshot
	ClearCart(ctx context.Context) error
}

// CheckoutRequest holds the checkout form.
type CheckoutRequest struct {
	Contact       Contact
	Shipping      Shipping
	PaymentMethod PaymentMethod
}

// CheckoutResult holds the output of a successful checkout.
type CheckoutResult struct {
	Order *Order
	// CartCleared is false when the order was placed but the cart could not
	// be emptied afterwards.
	CartCleared bool
}

// Service encapsulates checkout and order history.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository) *Service {
	return &Service{
		orders: orders,
		now:    time.Now,
	}
}

// Checkout turns the session's cart into an order, order items and a
// payment record, and empties the cart once they are stored.
//
// The cart is never cleared when placing the order fails.
func (s *Service) Checkout(ctx context.Context, session CartSession, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	snap := session.Snapshot()
	switch {
	case snap.State == cart.StateUnauthenticated || userID == "" || snap.UserID != userID:
		return nil, cart.ErrAuthRequired
	case snap.IsLoading:
		return nil, ErrCartLoading
	case len(snap.Lines) == 0:
		return nil, ErrEmptyCart
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	o := newOrder(userID, req, snap, s.now())
	if err := s.orders.Place(ctx, o); err != nil {
		return nil, errors.Wrap(err, "place order")
	}

	res := &CheckoutResult{Order: o, CartCleared: true}
	if err := session.ClearCart(ctx); err != nil {
		zctx.From(ctx).Warn("Clear cart after checkout",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		res.CartCleared = false
	}

	return res, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns one of the user's orders.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrNotFound
	}
	o, err := s.orders.Get(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func newOrder(userID string, req CheckoutRequest, snap cart.Snapshot, now time.Time) *Order {
	items := make([]Item, len(snap.Lines))
	for i, l := range snap.Lines {
		items[i] = Item{
			ID:        uuid.New().String(),
			ProductID: l.ProductID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			Price:     l.Product.EffectivePrice(),
		}
	}

	payment := Payment{
		ID:     uuid.New().String(),
		Method: req.PaymentMethod,
		Status: PaymentCompleted,
		Amount: snap.Total,
	}
	if req.PaymentMethod == PaymentCashOnDelivery {
		payment.Status = PaymentPending
	}

	return &Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    StatusPending,
		Contact:   req.Contact,
		Shipping:  req.Shipping,
		Total:     snap.Total,
		Items:     items,
		Payment:   payment,
		CreatedAt: now,
	}
}

func validate(req CheckoutRequest) error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", req.Contact.FirstName},
		{"last_name", req.Contact.LastName},
		{"address", req.Shipping.Address},
		{"city", req.Shipping.City},
		{"state", req.Shipping.State},
		{"zip", req.Shipping.Zip},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "required"}
		}
	}

	if _, err := mail.ParseAddress(req.Contact.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "invalid email address"}
	}
	if len(strings.TrimSpace(req.Contact.Phone)) < minPhoneLen {
		return &ValidationError{Field: "phone", Reason: "phone number is required"}
	}
	if !req.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: "unsupported payment method"}
	}
	return nil
}
