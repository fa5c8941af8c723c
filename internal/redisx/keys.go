package redisx

import "time"

const (
	// Dedup deduction: idem:inventory:deduct:{request_id} -> receipt JSON
	KeyIdemDeduct = "idem:inventory:deduct:%s"

	// Snapshot order terminal: order:{order_number} -> order JSON
	KeyOrder = "order:%s"
)

var (
	TTLIdempotency   = 24 * time.Hour
	TTLOrderSnapshot = 10 * time.Minute
)
