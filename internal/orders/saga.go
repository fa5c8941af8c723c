package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-batch-orders/internal/kafka"
	"github.com/ariefcatur/go-batch-orders/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderStore is the persistence the saga needs. *Repo implements it.
type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	Finalize(ctx context.Context, o *Order, from Status) error
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
}

// Coordinator runs order placement: validate, pre-check stock, persist PENDING,
// deduct every line remotely, then finalize as CONFIRMED or FAILED.
type Coordinator struct {
	Repo      OrderStore
	Inventory InventoryGateway
	Events    kafkax.Publisher // optional
	Metrics   *metrics.Orders  // optional
	Log       *zap.Logger
	Service   string

	Now       func() time.Time
	NewNumber func() string
}

const createAttempts = 3

func NewOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (c *Coordinator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Receipt, error) {
	started := time.Now()
	log := c.logger().With(zap.String("customer", req.CustomerName))

	// 1) validate: gagal di sini tidak menyentuh DB maupun network
	if err := ValidateRequest(req); err != nil {
		c.Metrics.ObservePlacement("rejected", started)
		return nil, err
	}

	// 2) pre-check semua item dulu, sebelum ada yang ditulis
	lookups := make(map[string][]BatchView, len(req.Items))
	for _, it := range req.Items {
		batches, err := c.checkAvailability(ctx, it.ProductCode, it.Quantity)
		if err != nil {
			log.Info("order rejected at availability check", zap.String("product_code", it.ProductCode), zap.Error(err))
			c.Metrics.ObservePlacement("rejected", started)
			return nil, err
		}
		lookups[it.ProductCode] = batches
	}

	// 3) commit PENDING
	order, err := c.createPending(ctx, req, lookups)
	if err != nil {
		log.Error("create pending order", zap.Error(err))
		c.Metrics.ObservePlacement("error", started)
		return nil, apperr.Processing("order processing failed", err)
	}
	log = log.With(zap.String("order_number", order.OrderNumber))
	log.Info("order pending", zap.Int("items", len(order.Items)), zap.String("total", order.TotalAmount.String()))

	// 4) deduct
	if cause := c.deductAll(ctx, order); cause != nil {
		log.Warn("inventory deduction failed, marking order FAILED", zap.Error(cause))
		c.Metrics.ObservePlacement("failed", started)
		return nil, c.markFailed(ctx, order, cause, log)
	}

	// 5) finalize
	order.Status = StatusConfirmed
	if err := c.Repo.Finalize(context.WithoutCancel(ctx), order, StatusPending); err != nil {
		// stok sudah terpotong tapi status gagal disimpan; order tetap PENDING di DB
		log.Error("confirm order", zap.Error(err))
		c.Metrics.ObservePlacement("error", started)
		return nil, apperr.Processing("order processing failed", fmt.Errorf("confirm order %s: %w", order.OrderNumber, err))
	}
	c.publishFinalized(order, nil)
	c.Metrics.ObservePlacement("confirmed", started)
	log.Info("order confirmed")

	return &Receipt{Order: *order, Message: "Order placed successfully"}, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, apperr.Invalid("order number is required")
	}
	return c.Repo.GetByNumber(ctx, orderNumber)
}

func ValidateRequest(req PlaceOrderRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" {
		return apperr.Invalid("customer name is required")
	}
	if len(req.Items) == 0 {
		return apperr.Invalid("order must contain at least one item")
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductCode) == "" {
			return apperr.Invalid("item %d: product code is required", i+1)
		}
		if it.Quantity <= 0 {
			return apperr.Invalid("item %d: quantity must be greater than 0", i+1)
		}
		if it.UnitPrice != nil && it.UnitPrice.IsNegative() {
			return apperr.Invalid("item %d: unit price must not be negative", i+1)
		}
		// kolom NUMERIC(14,2): lebih dari 2 desimal akan dibulatkan per baris oleh postgres
		if it.UnitPrice != nil && !it.UnitPrice.Equal(it.UnitPrice.Round(2)) {
			return apperr.Invalid("item %d: unit price must have at most 2 decimal places", i+1)
		}
	}
	return nil
}

// checkAvailability only reads; nothing is reserved between here and deduction.
func (c *Coordinator) checkAvailability(ctx context.Context, productCode string, needed int) ([]BatchView, error) {
	batches, err := c.Inventory.Batches(ctx, productCode)
	var nfe *apperr.NotFoundError
	switch {
	case errors.As(err, &nfe) || (err == nil && len(batches) == 0):
		return nil, &apperr.NotFoundError{
			Resource: "product", Key: productCode,
			Msg: "product not found or no inventory available: " + productCode,
		}
	case err != nil:
		return nil, fmt.Errorf("check inventory for %s: %w", productCode, err)
	}

	available := 0
	for _, b := range batches {
		available += b.Quantity
	}
	if available < needed {
		return nil, &apperr.InsufficientStockError{ProductCode: productCode, Available: available, Needed: needed}
	}
	return batches, nil
}

func (c *Coordinator) createPending(ctx context.Context, req PlaceOrderRequest, lookups map[string][]BatchView) (*Order, error) {
	order := &Order{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Status:        StatusPending,
		CreatedAt:     c.now(),
		TotalAmount:   decimal.Zero,
	}
	for _, in := range req.Items {
		price := decimal.Zero
		if in.UnitPrice != nil {
			price = *in.UnitPrice
		}
		line := price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		order.Items = append(order.Items, OrderItem{
			ProductCode: in.ProductCode,
			ProductName: productName(in.ProductCode, lookups[in.ProductCode]),
			Quantity:    in.Quantity,
			UnitPrice:   price,
			TotalPrice:  line,
		})
		order.TotalAmount = order.TotalAmount.Add(line)
	}

	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		order.OrderNumber = c.newNumber()
		if err = c.Repo.Create(ctx, order); !errors.Is(err, ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// productName: nama dari lookup inventory, fallback ke product code.
func productName(code string, batches []BatchView) string {
	if len(batches) > 0 && batches[0].ProductName != "" {
		return batches[0].ProductName
	}
	return code
}

// deductAll stops at the first failing line; lines already deducted stay deducted.
func (c *Coordinator) deductAll(ctx context.Context, order *Order) error {
	for i := range order.Items {
		it := &order.Items[i]
		res, err := c.Inventory.Deduct(ctx, DeductCommand{
			ProductCode: it.ProductCode,
			Quantity:    it.Quantity,
			RequestID:   fmt.Sprintf("%s-%d", order.OrderNumber, i+1),
		})
		if err != nil {
			return fmt.Errorf("deduct %s: %w", it.ProductCode, err)
		}
		if !res.Success {
			return &apperr.RemoteCallError{Op: "deduct " + it.ProductCode, Body: res.Message}
		}
		it.Allocations = res.Allocations
		c.logger().Debug("line deducted", zap.String("order_number", order.OrderNumber),
			zap.String("product_code", it.ProductCode), zap.Strings("batches", it.Allocations.BatchNumbers()))
	}
	return nil
}

// markFailed writes FAILED in its own transaction so the row survives as evidence,
// then returns the caller-facing ProcessingError wrapping cause.
func (c *Coordinator) markFailed(ctx context.Context, order *Order, cause error, log *zap.Logger) error {
	order.Status = StatusFailed
	perr := &apperr.ProcessingError{
		Msg: fmt.Sprintf("order processing failed: order %s created but inventory update failed", order.OrderNumber),
		Err: cause,
	}
	if err := c.Repo.Finalize(context.WithoutCancel(ctx), order, StatusPending); err != nil {
		log.Error("mark order failed", zap.Error(err))
		perr.Err = errors.Join(cause, fmt.Errorf("mark order %s failed: %w", order.OrderNumber, err))
	}
	c.publishFinalized(order, []string{cause.Error()})
	return perr
}

func (c *Coordinator) publishFinalized(order *Order, reasons []string) {
	if c.Events == nil {
		return
	}
	var deducted []DeductedLine
	for _, it := range order.Items {
		if len(it.Allocations) > 0 {
			deducted = append(deducted, DeductedLine{ProductCode: it.ProductCode, Quantity: it.Quantity, Allocations: it.Allocations})
		}
	}
	ev, err := NewEnvelope(EventOrderFinalized, c.Service, order.OrderNumber, "", OrderFinalizedPayload{
		OrderNumber: order.OrderNumber,
		FinalStatus: string(order.Status),
		TotalAmount: order.TotalAmount.StringFixed(2),
		Reasons:     reasons,
		Deducted:    deducted,
	})
	if err != nil {
		c.logger().Warn("build order finalized event", zap.Error(err))
		return
	}
	c.Events.Publish(PartitionKey(order.OrderNumber), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(EventOrderFinalized, ev.EventVersion)...)
}

func (c *Coordinator) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) newNumber() string {
	if c.NewNumber != nil {
		return c.NewNumber()
	}
	return NewOrderNumber()
}
