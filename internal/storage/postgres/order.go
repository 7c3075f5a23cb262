package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, status, first_name, last_name,
			contact_email, contact_phone, shipping_address, shipping_city, shipping_state,
			shipping_zip, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, amount, payment_method, status)
		VALUES ($1, $2, $3, $4, $5)`

	orderColumns = `o.id::text, o.user_id, o.status, o.first_name, o.last_name, o.contact_email,
		o.contact_phone, o.shipping_address, o.shipping_city, o.shipping_state, o.shipping_zip,
		o.total_amount, o.created_at,
		COALESCE(p.id::text, ''), COALESCE(p.payment_method, ''), COALESCE(p.status, ''),
		COALESCE(p.amount, 0)`

	listOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN payments p ON p.order_id = o.id
		WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id`

	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o LEFT JOIN payments p ON p.order_id = o.id
		WHERE o.user_id = $1 AND o.id = $2`

	listOrderItemsSQL = `SELECT id::text, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Place inserts the order, its items and its payment in one transaction.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, string(o.Status),
		o.Contact.FirstName, o.Contact.LastName, o.Contact.Email, o.Contact.Phone,
		o.Shipping.Address, o.Shipping.City, o.Shipping.State, o.Shipping.Zip,
		o.Total, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	orderID, err := uuid.Parse(o.ID)
	if err != nil {
		return fmt.Errorf("parsing order id %q: %w", o.ID, err)
	}
	items := make([][]any, len(o.Items))
	for i, it := range o.Items {
		itemID, err := uuid.Parse(it.ID)
		if err != nil {
			return fmt.Errorf("parsing item id %q: %w", it.ID, err)
		}
		items[i] = []any{itemID, orderID, int32(i), it.ProductID, it.Name, int32(it.Quantity), it.Price}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"id", "order_id", "position", "product_id", "product_name", "quantity", "price"},
		pgx.CopyFromRows(items),
	)
	if err != nil {
		return fmt.Errorf("creating items of order %q: %w", o.ID, err)
	}

	_, err = tx.Exec(ctx, insertPaymentSQL,
		o.Payment.ID, o.ID, o.Payment.Amount, string(o.Payment.Method), string(o.Payment.Status),
	)
	if err != nil {
		return fmt.Errorf("creating payment of order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order %q: %w", o.ID, err)
	}
	return nil
}

// ListByUser returns the user's orders, newest first, without items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Get returns one of the user's orders with its items.
func (r *OrderRepository) Get(ctx context.Context, userID, orderID string) (*order.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getOrderSQL, userID, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	rows, err = r.pool.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", orderID, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                             order.Order
		status, method, paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status,
		&o.Contact.FirstName, &o.Contact.LastName, &o.Contact.Email, &o.Contact.Phone,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.State, &o.Shipping.Zip,
		&o.Total, &o.CreatedAt,
		&o.Payment.ID, &method, &paymentStatus, &o.Payment.Amount,
	)
	o.Status = order.Status(status)
	o.Payment.Method = order.PaymentMethod(method)
	o.Payment.Status = order.PaymentStatus(paymentStatus)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.ProductID, &it.Name, &it.Quantity, &it.Price)
	return it, err
}
