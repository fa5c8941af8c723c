package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/inventory"
	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

// ReceiptCache stores successful deduction receipts keyed by request id.
type ReceiptCache struct{ RDB redis.Cmdable }

var _ inventory.ReceiptCache = (*ReceiptCache)(nil)

func (c *ReceiptCache) Get(ctx context.Context, requestID string) (*inventory.Receipt, error) {
	var rc inventory.Receipt
	ok, err := getJSON(ctx, c.RDB, fmt.Sprintf(KeyIdemDeduct, requestID), &rc)
	if !ok || err != nil {
		return nil, err
	}
	return &rc, nil
}

func (c *ReceiptCache) Put(ctx context.Context, requestID string, rc inventory.Receipt) error {
	return setJSON(ctx, c.RDB, fmt.Sprintf(KeyIdemDeduct, requestID), rc, TTLIdempotency)
}

// OrderCache menyimpan snapshot order yang sudah terminal (CONFIRMED/FAILED).
// Order PENDING tidak di-cache karena masih bisa berubah.
type OrderCache struct{ RDB redis.Cmdable }

func (c *OrderCache) Get(ctx context.Context, orderNumber string) (*orders.Order, error) {
	var o orders.Order
	ok, err := getJSON(ctx, c.RDB, fmt.Sprintf(KeyOrder, orderNumber), &o)
	if !ok || err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *OrderCache) Put(ctx context.Context, o *orders.Order) error {
	if !o.Status.Terminal() {
		return nil
	}
	return setJSON(ctx, c.RDB, fmt.Sprintf(KeyOrder, o.OrderNumber), o, TTLOrderSnapshot)
}

func getJSON(ctx context.Context, rdb redis.Cmdable, key string, out any) (bool, error) {
	b, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, rdb redis.Cmdable, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}
