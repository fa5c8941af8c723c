package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the part of *pgxpool.Pool the repo uses.
type DB interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repo struct{ DB DB }

var (
	ErrAlreadyExists     = errors.New("order already exists")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Create inserts the order and its items in one transaction and fills in the generated ids.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(order_number, customer_name, customer_email, status, created_at, total_amount)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING id`,
		o.OrderNumber, o.CustomerName, o.CustomerEmail, string(o.Status), o.CreatedAt, o.TotalAmount,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, o.OrderNumber)
		}
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		audit, err := it.Allocations.Encode()
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_code, product_name, quantity, unit_price, total_price, batch_allocations)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			o.ID, it.ProductCode, it.ProductName, it.Quantity, it.UnitPrice, it.TotalPrice, audit,
		).Scan(&it.ID)
		if err != nil {
			return err
		}
		it.OrderID = o.ID
	}

	return tx.Commit(ctx)
}

// Finalize moves the order from `from` to o.Status and stores every item's allocation audit.
// Runs in its own transaction, independent of whatever the caller was doing.
func (r *Repo) Finalize(ctx context.Context, o *Order, from Status) error {
	if !CanTransition(from, o.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, o.Status)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1 AND status=$3`,
		o.ID, string(o.Status), string(from))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order %s is no longer %s", ErrInvalidTransition, o.OrderNumber, from)
	}

	for _, it := range o.Items {
		if len(it.Allocations) == 0 {
			continue
		}
		audit, err := it.Allocations.Encode()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE order_items SET batch_allocations=$2 WHERE id=$1`, it.ID, audit); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var (
		o     Order
		email *string
		s     string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_number, customer_name, customer_email, status, created_at, total_amount
		FROM orders WHERE order_number=$1`, orderNumber,
	).Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &email, &s, &o.CreatedAt, &o.TotalAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order", orderNumber)
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(s)
	if email != nil {
		o.CustomerEmail = *email
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_code, product_name, quantity, unit_price, total_price, batch_allocations
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it    OrderItem
			audit []byte
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductCode, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.TotalPrice, &audit); err != nil {
			return nil, err
		}
		if it.Allocations, err = DecodeAllocations(audit); err != nil {
			return nil, fmt.Errorf("decode allocations for item %d: %w", it.ID, err)
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}
