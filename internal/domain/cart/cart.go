// Package cart implements the per-user shopping cart state manager.
//
// A Manager caches the authenticated user's cart lines in memory and keeps
// them in step with the durable Store. The Store is always the source of
// truth: in-memory state only changes after the Store confirms a write, and a
// Load replaces the cache wholesale.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// placeholderName labels lines whose product could not be resolved.
const placeholderName = "Item"

// State is the lifecycle state of a Manager.
type State int

const (
	// StateUnauthenticated means no user is signed in and the cart is empty.
	StateUnauthenticated State = iota
	// StateLoading means a load for the current user is in flight.
	StateLoading
	// StateReady means the cart reflects the last settled load and the
	// mutations confirmed since.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ProductSnapshot is a denormalized copy of a catalog product stored on a
// cart line. It is refreshed only when the cart is reloaded.
type ProductSnapshot struct {
	ProductID string
	Name      string
	Slug      string
	Image     string
	Price     decimal.Decimal
	SalePrice decimal.NullDecimal
	// Resolved is false for placeholder snapshots of products missing from
	// the catalog.
	Resolved bool
}

// EffectivePrice returns the sale price when present, else the regular price.
func (p ProductSnapshot) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

func snapshotOf(p product.Product) ProductSnapshot {
	return ProductSnapshot{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.Image(),
		Price:     p.Price,
		SalePrice: p.SalePrice,
		Resolved:  true,
	}
}

func placeholder(productID string) ProductSnapshot {
	return ProductSnapshot{
		ProductID: productID,
		Name:      placeholderName,
		Price:     decimal.Zero,
	}
}

// Line is one product entry in a user's cart.
type Line struct {
	ID        string
	ProductID string
	Quantity  int
	Product   ProductSnapshot
}

// Subtotal returns the effective unit price multiplied by the quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is a read-only view of a Manager's state. ItemCount and Total are
// derived from Lines when the snapshot is taken.
type Snapshot struct {
	UserID    string
	State     State
	Lines     []Line
	ItemCount int
	Total     decimal.Decimal
	IsLoading bool
}

func newSnapshot(userID string, state State, lines []Line) Snapshot {
	s := Snapshot{
		UserID:    userID,
		State:     state,
		Lines:     make([]Line, len(lines)),
		Total:     decimal.Zero,
		IsLoading: state == StateLoading,
	}
	copy(s.Lines, lines)
	for _, l := range lines {
		s.ItemCount += l.Quantity
		s.Total = s.Total.Add(l.Subtotal())
	}
	return s
}

// Row is a cart row as persisted by the Store.
type Row struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
}

// Store is the durable per-user cart table. Every method is scoped by userID;
// implementations must never touch rows owned by another user.
type Store interface {
	// List returns all rows owned by the user in insertion order.
	List(ctx context.Context, userID string) ([]Row, error)
	// Insert creates a row. When the user already holds a row for the
	// product, the quantities are merged and the existing row is returned.
	Insert(ctx context.Context, userID, productID string, quantity int) (Row, error)
	// UpdateQuantity sets the quantity of a row. It returns ErrLineNotFound
	// when no row matches (rowID, userID).
	UpdateQuantity(ctx context.Context, userID, rowID string, quantity int) (Row, error)
	// Delete removes a row. Deleting an absent row is not an error.
	Delete(ctx context.Context, userID, rowID string) error
	// DeleteAll removes every row owned by the user.
	DeleteAll(ctx context.Context, userID string) error
}

// Catalog resolves product snapshots for cart lines.
type Catalog interface {
	// GetProductByID returns product.ErrNotFound for unknown ids.
	GetProductByID(ctx context.Context, id string) (*product.Product, error)
}
