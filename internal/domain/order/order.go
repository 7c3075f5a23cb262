package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending Status = "pending"
)

// PaymentMethod is the payment option chosen at checkout.
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCreditCard || m == PaymentCashOnDelivery
}

// PaymentStatus is the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// Contact holds the customer's contact details for an order.
type Contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Shipping holds the delivery address for an order.
type Shipping struct {
	Address string
	City    string
	State   string
	Zip     string
}

// Order is a placed customer order with its line items and payment.
type Order struct {
	ID        string
	UserID    string
	Status    Status
	Contact   Contact
	Shipping  Shipping
	Total     decimal.Decimal
	Items     []Item
	Payment   Payment
	CreatedAt time.Time
}

// ItemCount returns the total quantity across all items.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Item is one product line of an order. Price is the effective unit price
// at the time the order was placed.
type Item struct {
	ID        string
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// Payment is the payment record created alongside an order.
type Payment struct {
	ID     string
	Method PaymentMethod
	Status PaymentStatus
	Amount decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place stores the order, its items and its payment atomically.
	Place(ctx context.Context, o *Order) error
	// ListByUser returns the user's orders, newest first, without items.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// Get returns the order with its items and payment, or ErrNotFound when
	// the user owns no such order.
	Get(ctx context.Context, userID, orderID string) (*Order, error)
}
