package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics counts the business outcomes of carts, orders and
// cascading deletions.
type MarketplaceMetrics struct {
	ordersCreated      *prometheus.CounterVec
	orderTransitions   *prometheus.CounterVec
	orderRejections    *prometheus.CounterVec
	cartConflicts      *prometheus.CounterVec
	cascadeDeletions   *prometheus.CounterVec
	cascadeRows        *prometheus.CounterVec
	fileCleanupFailure *prometheus.CounterVec
}

// NewMarketplaceMetrics registers the marketplace collectors. A nil registerer
// yields a no-op recorder.
func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	m := &MarketplaceMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "orders_created_total",
			Help:      "Orders created, by origin (direct or checkout).",
		}, []string{"origin"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "order_transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to"}),
		orderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "order_rejections_total",
			Help:      "Order operations rejected with a business error.",
		}, []string{"code"}),
		cartConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cart_conflicts_total",
			Help:      "Cart additions refused, by reason.",
		}, []string{"kind"}),
		cascadeDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cascade_deletions_total",
			Help:      "Cascading deletions by root entity and outcome.",
		}, []string{"root", "outcome"}),
		cascadeRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cascade_rows_deleted_total",
			Help:      "Rows removed by cascading deletions, by entity kind.",
		}, []string{"kind"}),
		fileCleanupFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "file_cleanup_failures_total",
			Help:      "Stored files that could not be removed after a deletion.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.orderTransitions,
		m.orderRejections,
		m.cartConflicts,
		m.cascadeDeletions,
		m.cascadeRows,
		m.fileCleanupFailure,
	)
	return m
}

func (m *MarketplaceMetrics) IncOrderCreated(origin string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(origin)).Inc()
}

func (m *MarketplaceMetrics) IncOrderTransition(from, to string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *MarketplaceMetrics) IncOrderRejection(code string) {
	if m == nil || m.orderRejections == nil {
		return
	}
	m.orderRejections.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *MarketplaceMetrics) IncCartConflict(kind string) {
	if m == nil || m.cartConflicts == nil {
		return
	}
	m.cartConflicts.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *MarketplaceMetrics) IncCascadeDeletion(root, outcome string) {
	if m == nil || m.cascadeDeletions == nil {
		return
	}
	m.cascadeDeletions.WithLabelValues(normalizeLabel(root), normalizeLabel(outcome)).Inc()
}

// AddCascadeRows adds the per-kind row counts of a finished cascade.
func (m *MarketplaceMetrics) AddCascadeRows(counts map[string]int64) {
	if m == nil || m.cascadeRows == nil {
		return
	}
	for kind, n := range counts {
		if n <= 0 {
			continue
		}
		m.cascadeRows.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
	}
}

// IncFileCleanupFailure satisfies the storage failure recorder.
func (m *MarketplaceMetrics) IncFileCleanupFailure(reason string) {
	if m == nil || m.fileCleanupFailure == nil {
		return
	}
	m.fileCleanupFailure.WithLabelValues(normalizeLabel(reason)).Inc()
}
