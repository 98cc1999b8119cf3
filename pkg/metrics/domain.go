package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts business-level cart and order activity.
type DomainMetrics struct {
	cartMutations     *prometheus.CounterVec
	checkouts         *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters on the provided registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart line mutations by operation.",
	}, []string{"operation"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"status"})
	reg.MustRegister(cartMutations, checkouts, statusTransitions)
	return &DomainMetrics{
		cartMutations:     cartMutations,
		checkouts:         checkouts,
		statusTransitions: statusTransitions,
	}
}

// IncCartMutation counts a cart line mutation (add, update, remove).
func (d *DomainMetrics) IncCartMutation(operation string) {
	if d == nil || d.cartMutations == nil {
		return
	}
	d.cartMutations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncCheckout counts a checkout attempt outcome (success, rejected, failed).
func (d *DomainMetrics) IncCheckout(outcome string) {
	if d == nil || d.checkouts == nil {
		return
	}
	d.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStatusTransition counts an applied order status transition.
func (d *DomainMetrics) IncStatusTransition(status string) {
	if d == nil || d.statusTransitions == nil {
		return
	}
	d.statusTransitions.WithLabelValues(normalizeLabel(status)).Inc()
}
