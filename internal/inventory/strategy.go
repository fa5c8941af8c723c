package inventory

import (
	"slices"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/apperr"
)

const (
	StrategyFEFO = "FEFO"
	StrategyFIFO = "FIFO"
)

// Strategy decides which batches satisfy a requested quantity.
// Allocate never mutates the batches it is given; quantityNeeded must be > 0.
type Strategy interface {
	Name() string
	Allocate(batches []Batch, quantityNeeded int) ([]Draw, error)
}

// FEFO draws from the batch that expires first.
type FEFO struct{}

func (FEFO) Name() string { return StrategyFEFO }

func (FEFO) Allocate(batches []Batch, quantityNeeded int) ([]Draw, error) {
	return allocateBy(batches, quantityNeeded, func(b Batch) time.Time { return b.ExpiryDate })
}

// FIFO draws from the batch that was received first.
type FIFO struct{}

func (FIFO) Name() string { return StrategyFIFO }

func (FIFO) Allocate(batches []Batch, quantityNeeded int) ([]Draw, error) {
	return allocateBy(batches, quantityNeeded, func(b Batch) time.Time { return b.ReceivedDate })
}

func allocateBy(batches []Batch, quantityNeeded int, key func(Batch) time.Time) ([]Draw, error) {
	// sort salinan, input caller tidak disentuh
	sorted := slices.Clone(batches)
	slices.SortStableFunc(sorted, func(a, b Batch) int {
		return key(a).Compare(key(b))
	})

	total := 0
	for _, b := range sorted {
		if b.Quantity > 0 {
			total += b.Quantity
		}
	}
	if total < quantityNeeded {
		return nil, &apperr.InsufficientStockError{Available: total, Needed: quantityNeeded}
	}

	var draws []Draw
	remaining := quantityNeeded
	for _, b := range sorted {
		if remaining == 0 {
			break
		}
		if b.Quantity <= 0 {
			continue
		}
		n := min(b.Quantity, remaining)
		draws = append(draws, Draw{BatchID: b.ID, BatchNumber: b.BatchNumber, Quantity: n})
		remaining -= n
	}
	return draws, nil
}
