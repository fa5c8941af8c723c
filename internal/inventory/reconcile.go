package inventory

import (
	"context"

	kafkax "github.com/ariefcatur/go-batch-orders/internal/kafka"
	"github.com/ariefcatur/go-batch-orders/internal/metrics"
	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reconciler watches order.finalized. Stock deducted for an order that ended
// FAILED is never put back automatically; it is logged per batch and counted
// so an operator can restock it.
type Reconciler struct {
	Metrics *metrics.Inventory // optional
	Log     *zap.Logger
}

// HandleOrderFinalized is a kafka.Handler. Undecodable messages are logged and
// acknowledged so one bad record cannot stall the partition.
func (r *Reconciler) HandleOrderFinalized(_ context.Context, m kafka.Message) error {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	env, err := kafkax.UnwrapPayload[orders.Envelope](m.Value)
	if err != nil {
		log.Warn("skip undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderFinalized {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderFinalizedPayload](env.Payload)
	if err != nil {
		log.Warn("skip undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.FinalStatus != string(orders.StatusFailed) || len(p.Deducted) == 0 {
		return nil
	}

	for _, line := range p.Deducted {
		for _, a := range line.Allocations {
			log.Warn("stranded stock from failed order",
				zap.String("order_number", p.OrderNumber),
				zap.String("product_code", line.ProductCode),
				zap.String("batch_number", a.BatchNumber),
				zap.Int("quantity", a.Quantity),
			)
		}
		r.Metrics.ObserveStranded(line.ProductCode, line.Quantity)
	}
	return nil
}
