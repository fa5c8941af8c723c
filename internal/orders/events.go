package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventInventoryDeducted = "InventoryDeducted"
	EventOrderFinalized    = "OrderFinalized"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number atau product code
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, correlationID, traceID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- Payload tipe per event ----

type InventoryDeductedPayload struct {
	ProductCode string             `json:"product_code"`
	Quantity    int                `json:"quantity"`
	Strategy    string             `json:"strategy"`
	RequestID   string             `json:"request_id,omitempty"`
	Allocations []AllocationRecord `json:"allocations"`
}

type OrderFinalizedPayload struct {
	OrderNumber string         `json:"order_number"`
	FinalStatus string         `json:"final_status"` // CONFIRMED | FAILED
	TotalAmount string         `json:"total_amount"`
	Reasons     []string       `json:"reasons,omitempty"` // jika FAILED
	Deducted    []DeductedLine `json:"deducted,omitempty"`
}

// DeductedLine: line yang stoknya sudah dipotong. Untuk order FAILED,
// ini stok yang "nyangkut" dan perlu direkonsiliasi manual.
type DeductedLine struct {
	ProductCode string             `json:"product_code"`
	Quantity    int                `json:"quantity"`
	Allocations []AllocationRecord `json:"allocations"`
}
