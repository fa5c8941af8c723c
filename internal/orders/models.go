package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Status        Status          `json:"status"` // lihat status.go
	CreatedAt     time.Time       `json:"order_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID          int64           `json:"-"`
	OrderID     int64           `json:"-"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Allocations Allocations     `json:"batch_allocations"`
}

// AllocationRecord: batch yang dipotong untuk satu line, hasil dari inventory service.
type AllocationRecord struct {
	BatchNumber string `json:"batchNumber"`
	Quantity    int    `json:"quantity"`
}

// Allocations is the audit trail stored with an order line.
// It is persisted as a JSON array; an empty list is stored as NULL.
type Allocations []AllocationRecord

func (a Allocations) Encode() ([]byte, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal([]AllocationRecord(a))
}

func DecodeAllocations(b []byte) (Allocations, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var out Allocations
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a Allocations) BatchNumbers() []string {
	out := make([]string, 0, len(a))
	for _, r := range a {
		out = append(out, r.BatchNumber)
	}
	return out
}

type ItemInput struct {
	ProductCode string           `json:"product_code"`
	Quantity    int              `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

type PlaceOrderRequest struct {
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Items         []ItemInput `json:"items"`
}

type Receipt struct {
	Order
	Message string `json:"message"`
}
