package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	listCartSQL = `SELECT id::text, user_id, product_id, quantity
		FROM cart WHERE user_id = $1 ORDER BY created_at, id`

	insertCartSQL = `INSERT INTO cart (user_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart.quantity + EXCLUDED.quantity
		RETURNING id::text, user_id, product_id, quantity`

	updateCartSQL = `UPDATE cart SET quantity = $3 WHERE user_id = $1 AND id = $2
		RETURNING id::text, user_id, product_id, quantity`

	deleteCartSQL = `DELETE FROM cart WHERE user_id = $1 AND id = $2`

	deleteAllCartSQL = `DELETE FROM cart WHERE user_id = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL. Every statement is
// scoped by user_id.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// List returns the user's rows in insertion order.
func (s *CartStore) List(ctx context.Context, userID string) ([]cart.Row, error) {
	rows, err := s.pool.Query(ctx, listCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartRow)
}

// Insert adds a row, merging the quantity into the user's existing row for
// the same product.
func (s *CartStore) Insert(ctx context.Context, userID, productID string, quantity int) (cart.Row, error) {
	rows, err := s.pool.Query(ctx, insertCartSQL, userID, productID, quantity)
	if err != nil {
		return cart.Row{}, fmt.Errorf("inserting cart row: %w", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, scanCartRow)
	if err != nil {
		return cart.Row{}, fmt.Errorf("inserting cart row: %w", err)
	}
	return row, nil
}

// UpdateQuantity sets the quantity of one of the user's rows.
func (s *CartStore) UpdateQuantity(ctx context.Context, userID, rowID string, quantity int) (cart.Row, error) {
	if _, err := uuid.Parse(rowID); err != nil {
		return cart.Row{}, cart.ErrLineNotFound
	}
	rows, err := s.pool.Query(ctx, updateCartSQL, userID, rowID, quantity)
	if err != nil {
		return cart.Row{}, fmt.Errorf("updating cart row %q: %w", rowID, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, scanCartRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Row{}, cart.ErrLineNotFound
		}
		return cart.Row{}, fmt.Errorf("updating cart row %q: %w", rowID, err)
	}
	return row, nil
}

// Delete removes one of the user's rows. Absent rows are ignored.
func (s *CartStore) Delete(ctx context.Context, userID, rowID string) error {
	if _, err := uuid.Parse(rowID); err != nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, deleteCartSQL, userID, rowID); err != nil {
		return fmt.Errorf("deleting cart row %q: %w", rowID, err)
	}
	return nil
}

// DeleteAll removes every row owned by the user.
func (s *CartStore) DeleteAll(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, deleteAllCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}

func scanCartRow(row pgx.CollectableRow) (cart.Row, error) {
	var r cart.Row
	err := row.Scan(&r.ID, &r.UserID, &r.ProductID, &r.Quantity)
	return r, err
}
