package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-batch-orders/internal/kafka"
	"github.com/ariefcatur/go-batch-orders/internal/metrics"
	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"go.uber.org/zap"
)

// ReceiptCache remembers successful deductions by request id so a retried
// request is answered without deducting twice.
type ReceiptCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, requestID string) (*Receipt, error)
	Put(ctx context.Context, requestID string, r Receipt) error
}

type Service struct {
	Store       Store
	Strategies  *Registry
	Receipts    ReceiptCache       // optional
	Events      kafkax.Publisher   // optional, publish inventory.deducted
	Metrics     *metrics.Inventory // optional
	Log         *zap.Logger
	ServiceName string
}

// Batches returns the product's batches ordered by expiry date.
func (s *Service) Batches(ctx context.Context, productCode string) ([]Batch, error) {
	p, err := s.Store.ProductByCode(ctx, productCode)
	if err != nil {
		return nil, err
	}
	return s.Store.BatchesByProduct(ctx, p.ID)
}

func (s *Service) Products(ctx context.Context) ([]ProductStock, error) {
	ps, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductStock, 0, len(ps))
	for _, p := range ps {
		bs, err := s.Store.BatchesByProduct(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("batches for %s: %w", p.Code, err)
		}
		out = append(out, ProductStock{ProductCode: p.Code, ProductName: p.Name, Description: p.Description, Batches: bs})
	}
	return out, nil
}

// Deduct removes req.Quantity units of the product from its batches, picking
// batches with the requested (or default) strategy. All batch decrements
// commit together or not at all. A request id already recorded returns its
// original receipt without touching stock.
func (s *Service) Deduct(ctx context.Context, req DeductRequest) (*Receipt, error) {
	req.ProductCode = strings.TrimSpace(req.ProductCode)
	if req.ProductCode == "" || req.Quantity <= 0 {
		return nil, apperr.Invalid("invalid request: product code and positive quantity are required")
	}
	log := s.logger().With(zap.String("product_code", req.ProductCode), zap.Int("quantity", req.Quantity))

	if req.RequestID != "" && s.Receipts != nil {
		cached, err := s.Receipts.Get(ctx, req.RequestID)
		if err != nil {
			log.Warn("receipt cache lookup", zap.String("request_id", req.RequestID), zap.Error(err))
		} else if cached != nil {
			log.Info("replayed deduction from cache", zap.String("request_id", req.RequestID))
			return replay(req, cached)
		}
	}

	strategy := s.Strategies.Get(req.Strategy)
	var (
		rc       *Receipt
		replayed bool
	)

	err := s.Store.InTx(ctx, func(tx StoreTx) error {
		p, err := tx.ProductByCode(ctx, req.ProductCode)
		if err != nil {
			return err
		}
		batches, err := tx.LockBatches(ctx, p.ID)
		if err != nil {
			return err
		}

		// dicek setelah lock: retry yang paralel menunggu di sini sampai yang pertama commit
		if req.RequestID != "" {
			done, err := tx.ReceiptFor(ctx, req.RequestID)
			if err != nil {
				return err
			}
			if done != nil {
				rc, replayed = done, true
				return nil
			}
		}

		if len(batches) == 0 {
			return &apperr.InsufficientStockError{ProductCode: req.ProductCode, Available: 0, Needed: req.Quantity}
		}
		draws, err := strategy.Allocate(batches, req.Quantity)
		if err != nil {
			var ise *apperr.InsufficientStockError
			if errors.As(err, &ise) {
				ise.ProductCode = req.ProductCode
			}
			return err
		}

		allocs := make([]Allocation, 0, len(draws))
		for _, d := range draws {
			if err := tx.DeductBatch(ctx, d.BatchID, d.Quantity); err != nil {
				return fmt.Errorf("deduct batch %s: %w", d.BatchNumber, err)
			}
			allocs = append(allocs, Allocation{BatchNumber: d.BatchNumber, QuantityAllocated: d.Quantity})
		}
		rc = &Receipt{
			Success:          true,
			Message:          fmt.Sprintf("Inventory updated successfully using %s strategy", strategy.Name()),
			ProductCode:      req.ProductCode,
			QuantityDeducted: req.Quantity,
			Strategy:         strategy.Name(),
			Allocations:      allocs,
		}
		if req.RequestID != "" {
			return tx.SaveReceipt(ctx, req.RequestID, *rc)
		}
		return nil
	})
	if err != nil {
		s.Metrics.ObserveDeduction(strategy.Name(), resultLabel(err), 0)
		if errors.Is(err, ErrNegativeStock) {
			log.Error("deduction aborted", zap.String("strategy", strategy.Name()), zap.Error(err))
		} else {
			log.Info("deduction rejected", zap.String("strategy", strategy.Name()), zap.Error(err))
		}
		return nil, err
	}

	if replayed {
		log.Info("replayed deduction", zap.String("request_id", req.RequestID))
		s.cacheReceipt(ctx, req.RequestID, rc, log)
		return replay(req, rc)
	}

	s.Metrics.ObserveDeduction(strategy.Name(), "ok", req.Quantity)
	log.Info("inventory deducted", zap.String("strategy", strategy.Name()), zap.Int("batches", len(rc.Allocations)))

	s.cacheReceipt(ctx, req.RequestID, rc, log)
	s.publishDeducted(req, rc)
	return rc, nil
}

// replay returns the recorded receipt, refusing a request id reused for a different deduction.
func replay(req DeductRequest, rc *Receipt) (*Receipt, error) {
	if rc.ProductCode != req.ProductCode || rc.QuantityDeducted != req.Quantity {
		return nil, apperr.Invalid("request id %s was already used for %s x%d",
			req.RequestID, rc.ProductCode, rc.QuantityDeducted)
	}
	return rc, nil
}

// cacheReceipt survives a caller that already hung up; the stock is deducted either way.
func (s *Service) cacheReceipt(ctx context.Context, requestID string, rc *Receipt, log *zap.Logger) {
	if requestID == "" || s.Receipts == nil {
		return
	}
	if err := s.Receipts.Put(context.WithoutCancel(ctx), requestID, *rc); err != nil {
		log.Warn("receipt cache store", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *Service) publishDeducted(req DeductRequest, rc *Receipt) {
	if s.Events == nil {
		return
	}
	records := make([]orders.AllocationRecord, 0, len(rc.Allocations))
	for _, a := range rc.Allocations {
		records = append(records, orders.AllocationRecord{BatchNumber: a.BatchNumber, Quantity: a.QuantityAllocated})
	}
	ev, err := orders.NewEnvelope(orders.EventInventoryDeducted, s.ServiceName, req.ProductCode, req.RequestID,
		orders.InventoryDeductedPayload{
			ProductCode: rc.ProductCode,
			Quantity:    rc.QuantityDeducted,
			Strategy:    rc.Strategy,
			RequestID:   req.RequestID,
			Allocations: records,
		})
	if err != nil {
		s.logger().Warn("build inventory deducted event", zap.Error(err))
		return
	}
	s.Events.Publish(orders.PartitionKey(req.ProductCode), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventInventoryDeducted, ev.EventVersion)...)
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func resultLabel(err error) string {
	var (
		ise *apperr.InsufficientStockError
		nfe *apperr.NotFoundError
	)
	switch {
	case errors.As(err, &ise):
		return "insufficient"
	case errors.As(err, &nfe):
		return "not_found"
	default:
		return "error"
	}
}
