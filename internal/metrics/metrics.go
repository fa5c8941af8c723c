package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Inventory counts deductions per strategy and outcome. A nil *Inventory is a no-op.
type Inventory struct {
	deductions *prometheus.CounterVec
	units      *prometheus.CounterVec
	stranded   *prometheus.CounterVec
}

func NewInventory(reg prometheus.Registerer) *Inventory {
	m := &Inventory{
		deductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory", Name: "deductions_total",
			Help: "Deduction calls by allocation strategy and result.",
		}, []string{"strategy", "result"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory", Name: "deducted_units_total",
			Help: "Units drawn from batches by allocation strategy.",
		}, []string{"strategy"}),
		stranded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory", Name: "stranded_units_total",
			Help: "Units deducted for orders that ended FAILED and were not restocked.",
		}, []string{"product_code"}),
	}
	reg.MustRegister(m.deductions, m.units, m.stranded)
	return m
}

func (m *Inventory) ObserveDeduction(strategy, result string, units int) {
	if m == nil {
		return
	}
	m.deductions.WithLabelValues(strategy, result).Inc()
	if units > 0 {
		m.units.WithLabelValues(strategy).Add(float64(units))
	}
}

func (m *Inventory) ObserveStranded(productCode string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stranded.WithLabelValues(productCode).Add(float64(units))
}

// Orders tracks saga outcomes and their latency. A nil *Orders is a no-op.
type Orders struct {
	placed  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewOrders(reg prometheus.Registerer) *Orders {
	m := &Orders{
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orders", Name: "placed_total",
			Help: "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orders", Name: "placement_seconds",
			Help:    "Order placement latency by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.placed, m.latency)
	return m
}

func (m *Orders) ObservePlacement(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.placed.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}
