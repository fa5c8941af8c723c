package inventory

import "time"

type Product struct {
	ID          int64
	Code        string
	Name        string
	Description string
}

type Batch struct {
	ID           int64     `json:"id"`
	BatchNumber  string    `json:"batch_number"`
	ProductID    int64     `json:"-"`
	ProductCode  string    `json:"product_code"`
	ProductName  string    `json:"product_name"`
	Quantity     int       `json:"quantity"`
	ExpiryDate   time.Time `json:"expiry_date"`
	ReceivedDate time.Time `json:"received_date"`
}

// Draw: satu batch yang dipakai untuk memenuhi sebagian quantity.
type Draw struct {
	BatchID     int64
	BatchNumber string
	Quantity    int
}

type Allocation struct {
	BatchNumber       string `json:"batch_number"`
	QuantityAllocated int    `json:"quantity_allocated"`
}

type DeductRequest struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
	Strategy    string `json:"strategy,omitempty"`
	// RequestID dipakai untuk dedup retry dari sisi order.
	RequestID string `json:"request_id,omitempty"`
}

type Receipt struct {
	Success          bool         `json:"success"`
	Message          string       `json:"message"`
	ProductCode      string       `json:"product_code"`
	QuantityDeducted int          `json:"quantity_deducted"`
	Strategy         string       `json:"strategy"`
	Allocations      []Allocation `json:"allocations"`
}

type ProductStock struct {
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name"`
	Description string  `json:"description"`
	Batches     []Batch `json:"batches"`
}
