package inventory

import (
	"context"
	"testing"

	kafkax "github.com/ariefcatur/go-batch-orders/internal/kafka"
	"github.com/ariefcatur/go-batch-orders/internal/metrics"
	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func finalizedMessage(t *testing.T, p orders.OrderFinalizedPayload) kafka.Message {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderFinalized, "order-api", p.OrderNumber, "", p)
	require.NoError(t, err)
	return kafka.Message{Key: orders.PartitionKey(p.OrderNumber), Value: kafkax.MustMarshal(env)}
}

func newObservedReconciler() (*Reconciler, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return &Reconciler{
		Metrics: metrics.NewInventory(prometheus.NewRegistry()),
		Log:     zap.New(core),
	}, logs
}

func TestReconciler_FailedOrderLogsEveryBatch(t *testing.T) {
	r, logs := newObservedReconciler()

	err := r.HandleOrderFinalized(context.Background(), finalizedMessage(t, orders.OrderFinalizedPayload{
		OrderNumber: "ORD-1A2B3C4D",
		FinalStatus: "FAILED",
		Deducted: []orders.DeductedLine{{
			ProductCode: "MILK-1L", Quantity: 40,
			Allocations: []orders.AllocationRecord{{BatchNumber: "B-2", Quantity: 30}, {BatchNumber: "B-1", Quantity: 10}},
		}},
	}))

	require.NoError(t, err)
	entries := logs.FilterMessage("stranded stock from failed order").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "B-2", entries[0].ContextMap()["batch_number"])
	assert.Equal(t, "ORD-1A2B3C4D", entries[1].ContextMap()["order_number"])
}

func TestReconciler_IgnoresConfirmedAndGarbage(t *testing.T) {
	r, logs := newObservedReconciler()

	require.NoError(t, r.HandleOrderFinalized(context.Background(), finalizedMessage(t, orders.OrderFinalizedPayload{
		OrderNumber: "ORD-1", FinalStatus: "CONFIRMED",
		Deducted: []orders.DeductedLine{{ProductCode: "MILK-1L", Quantity: 1}},
	})))
	assert.Zero(t, logs.Len())

	require.NoError(t, r.HandleOrderFinalized(context.Background(), kafka.Message{Value: []byte("{")}))
	assert.Equal(t, 1, logs.FilterMessage("skip undecodable event").Len())
}
