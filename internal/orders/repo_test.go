package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &Repo{DB: mock}, mock
}

func pendingOrder() *Order {
	return &Order{
		OrderNumber:  "ORD-1A2B3C4D",
		CustomerName: "Dewi",
		Status:       StatusPending,
		CreatedAt:    time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		TotalAmount:  decimal.RequireFromString("5.00"),
		Items: []OrderItem{{
			ProductCode: "MILK-1L", ProductName: "Whole Milk 1L", Quantity: 2,
			UnitPrice: decimal.RequireFromString("2.50"), TotalPrice: decimal.RequireFromString("5.00"),
		}},
	}
}

// ============================================
// Create
// ============================================

func TestRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := pendingOrder()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs("ORD-1A2B3C4D", "Dewi", "", "PENDING", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO order_items").
		WithArgs(int64(7), "MILK-1L", "Whole Milk 1L", 2, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(70)))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), o))

	assert.Equal(t, int64(7), o.ID)
	assert.Equal(t, int64(70), o.Items[0].ID)
	assert.Equal(t, int64(7), o.Items[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreate_DuplicateNumber(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pendingOrder())

	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreate_ItemFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery("INSERT INTO order_items").WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), pendingOrder())

	assert.EqualError(t, err, "connection lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Finalize
// ============================================

func TestRepoFinalize_StoresStatusAndAudit(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := pendingOrder()
	o.ID, o.Items[0].ID = 7, 70
	o.Status = StatusConfirmed
	o.Items[0].Allocations = Allocations{{BatchNumber: "B-2", Quantity: 2}}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(7), "CONFIRMED", "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE order_items SET batch_allocations").
		WithArgs(int64(70), []byte(`[{"batchNumber":"B-2","quantity":2}]`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Finalize(context.Background(), o, StatusPending))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoFinalize_RowNoLongerPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := pendingOrder()
	o.ID = 7
	o.Status = StatusFailed

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(int64(7), "FAILED", "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Finalize(context.Background(), o, StatusPending)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoFinalize_IllegalTransitionNeverHitsDB(t *testing.T) {
	repo, mock := newMockRepo(t)
	o := pendingOrder()
	o.Status = StatusPending

	err := repo.Finalize(context.Background(), o, StatusConfirmed)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// GetByNumber
// ============================================

func TestRepoGetByNumber_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM orders WHERE order_number").
		WithArgs("ORD-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByNumber(context.Background(), "ORD-404")

	var nfe *apperr.NotFoundError
	assert.ErrorAs(t, err, &nfe)
	assert.NoError(t, mock.ExpectationsWereMet())
}
