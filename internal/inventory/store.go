package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNegativeStock: decrement yang akan membuat quantity batch < 0.
// Ini pelanggaran invariant, bukan kondisi "stok kurang" untuk user.
var ErrNegativeStock = errors.New("batch quantity would go negative")

type Store interface {
	ProductByCode(ctx context.Context, code string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// BatchesByProduct returns batches ordered by expiry date ascending.
	BatchesByProduct(ctx context.Context, productID int64) ([]Batch, error)
	InTx(ctx context.Context, fn func(tx StoreTx) error) error
}

// StoreTx is the view of Store inside one unit of work.
type StoreTx interface {
	ProductByCode(ctx context.Context, code string) (Product, error)
	// LockBatches loads and row-locks every batch of the product, expiry ascending.
	LockBatches(ctx context.Context, productID int64) ([]Batch, error)
	DeductBatch(ctx context.Context, batchID int64, qty int) error
	// ReceiptFor returns the receipt recorded for requestID, or nil.
	ReceiptFor(ctx context.Context, requestID string) (*Receipt, error)
	// SaveReceipt records requestID as done; commits with the decrements.
	SaveReceipt(ctx context.Context, requestID string, rc Receipt) error
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type PgStore struct{ DB DB }

const batchColumns = `b.id, b.batch_number, b.product_id, p.product_code, p.name,
	b.quantity, b.expiry_date, b.received_date`

func (s *PgStore) ProductByCode(ctx context.Context, code string) (Product, error) {
	return productByCode(ctx, s.DB, code)
}

func (s *PgStore) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, product_code, name, description FROM products ORDER BY product_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PgStore) BatchesByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	return queryBatches(ctx, s.DB, `SELECT `+batchColumns+`
		FROM batches b JOIN products p ON p.id = b.product_id
		WHERE b.product_id = $1
		ORDER BY b.expiry_date, b.id`, productID)
}

// InTx: semua decrement dalam fn commit bersama, atau tidak sama sekali.
func (s *PgStore) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) ProductByCode(ctx context.Context, code string) (Product, error) {
	return productByCode(ctx, t.tx, code)
}

func (t *pgTx) LockBatches(ctx context.Context, productID int64) ([]Batch, error) {
	return queryBatches(ctx, t.tx, `SELECT `+batchColumns+`
		FROM batches b JOIN products p ON p.id = b.product_id
		WHERE b.product_id = $1
		ORDER BY b.expiry_date, b.id
		FOR UPDATE OF b`, productID)
}

func (t *pgTx) DeductBatch(ctx context.Context, batchID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE batches SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2`, batchID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("batch id=%d qty=%d: %w", batchID, qty, ErrNegativeStock)
	}
	return nil
}

func (t *pgTx) ReceiptFor(ctx context.Context, requestID string) (*Receipt, error) {
	var raw []byte
	err := t.tx.QueryRow(ctx, `SELECT receipt FROM deductions WHERE request_id = $1`, requestID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rc Receipt
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", requestID, err)
	}
	return &rc, nil
}

func (t *pgTx) SaveReceipt(ctx context.Context, requestID string, rc Receipt) error {
	raw, err := json.Marshal(rc)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO deductions(request_id, product_code, quantity, receipt)
		VALUES ($1, $2, $3, $4)`, requestID, rc.ProductCode, rc.QuantityDeducted, raw)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// request id yang sama sudah dipakai untuk product lain
		return apperr.Invalid("request id %s was already used for another deduction", requestID)
	}
	return err
}

func productByCode(ctx context.Context, q querier, code string) (Product, error) {
	var p Product
	err := q.QueryRow(ctx, `SELECT id, product_code, name, description FROM products WHERE product_code = $1`, code).
		Scan(&p.ID, &p.Code, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product", code)
	}
	return p, err
}

func queryBatches(ctx context.Context, q querier, sql string, args ...any) ([]Batch, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.BatchNumber, &b.ProductID, &b.ProductCode, &b.ProductName,
			&b.Quantity, &b.ExpiryDate, &b.ReceivedDate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
