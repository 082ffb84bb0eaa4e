package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts ledger and order outcomes.
type DomainMetrics struct {
	inventoryOps  *prometheus.CounterVec
	unitsMoved    prometheus.Counter
	unitsConsumed prometheus.Counter
	orders        *prometheus.CounterVec
	orderIDSource *prometheus.CounterVec
	segments      *prometheus.CounterVec
}

// NewDomainMetrics registers the domain metrics on the provided registerer.
// A nil registerer yields a recorder that drops everything.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		inventoryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_operations_total",
			Help:      "Inventory ledger operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		unitsMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_units_moved_total",
			Help:      "Units moved between storage locations.",
		}),
		unitsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_units_consumed_total",
			Help:      "Units consumed by picks.",
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "order_operations_total",
			Help:      "Order operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		orderIDSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "order_id_source_total",
			Help:      "Created orders by the source of their primary key.",
		}, []string{"source"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "customer_segments_applied_total",
			Help:      "Customer segment writes by resulting segment.",
		}, []string{"segment"}),
	}
	reg.MustRegister(m.inventoryOps, m.unitsMoved, m.unitsConsumed, m.orders, m.orderIDSource, m.segments)
	return m
}

func (m *DomainMetrics) InventoryOp(operation string, err error) {
	if m == nil || m.inventoryOps == nil {
		return
	}
	m.inventoryOps.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *DomainMetrics) UnitsMoved(n int) {
	if m == nil || m.unitsMoved == nil || n <= 0 {
		return
	}
	m.unitsMoved.Add(float64(n))
}

func (m *DomainMetrics) UnitsConsumed(n int) {
	if m == nil || m.unitsConsumed == nil || n <= 0 {
		return
	}
	m.unitsConsumed.Add(float64(n))
}

func (m *DomainMetrics) OrderOp(operation string, err error) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(operation, outcome(err)).Inc()
}

func (m *DomainMetrics) OrderIDSource(source string) {
	if m == nil || m.orderIDSource == nil {
		return
	}
	m.orderIDSource.WithLabelValues(source).Inc()
}

func (m *DomainMetrics) SegmentApplied(segment string) {
	if m == nil || m.segments == nil {
		return
	}
	m.segments.WithLabelValues(segment).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
