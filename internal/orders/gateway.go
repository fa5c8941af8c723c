package orders

import (
	"context"
	"time"
)

// InventoryGateway is the order side's view of the inventory service.
// Both calls are independent remote requests; Batches does not reserve stock.
type InventoryGateway interface {
	Batches(ctx context.Context, productCode string) ([]BatchView, error)
	Deduct(ctx context.Context, cmd DeductCommand) (DeductResult, error)
}

type BatchView struct {
	BatchNumber  string
	Quantity     int
	ExpiryDate   time.Time
	ReceivedDate time.Time
	ProductCode  string
	ProductName  string
}

type DeductCommand struct {
	ProductCode string
	Quantity    int
	Strategy    string // kosong = default di inventory service
	RequestID   string
}

type DeductResult struct {
	Success          bool
	Message          string
	ProductCode      string
	QuantityDeducted int
	Allocations      Allocations
}
