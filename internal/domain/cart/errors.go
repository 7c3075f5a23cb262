package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors reported by Manager operations.
var (
	// ErrAuthRequired is returned for operations attempted without a
	// signed-in user. No store call is made.
	ErrAuthRequired = errors.New("authentication required")
	// ErrStoreUnavailable matches every *StoreError.
	ErrStoreUnavailable = errors.New("cart store unavailable")
	// ErrInvalidQuantity is returned for quantities below 1 or above
	// MaxQuantity.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 2147483647")
	// ErrLineNotFound is returned when the store holds no row with the given
	// id for the current user.
	ErrLineNotFound = errors.New("cart line not found")
)

// Op names a Manager operation in errors, notices and metrics.
type Op string

// Manager operations.
const (
	OpLoad   Op = "load"
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// StoreError wraps a failed Store call. In-memory state is left at its last
// known-good value whenever a StoreError is returned.
type StoreError struct {
	Op  Op
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cart %s: %s: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports ErrStoreUnavailable as a match.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// ProductUnresolvedError describes a cart row whose product is missing from
// the catalog. Such rows still load, with a placeholder snapshot.
type ProductUnresolvedError struct {
	ProductID string
	Err       error
}

func (e *ProductUnresolvedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("product %s unresolved: %v", e.ProductID, e.Err)
	}
	return fmt.Sprintf("product %s unresolved", e.ProductID)
}

func (e *ProductUnresolvedError) Unwrap() error {
	return e.Err
}
