package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the checkout/payment counters exposed at /metrics.
type Registry struct {
	CheckoutSubmissions *prometheus.CounterVec
	PaymentOutcomes     *prometheus.CounterVec
	ShippingFallbacks   prometheus.Counter
	CartSyncs           *prometheus.CounterVec
}

// New registers the storefront metrics on the provided registerer. Passing
// nil uses the default registerer.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Registry{
		CheckoutSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loomline",
			Subsystem: "checkout",
			Name:      "submissions_total",
			Help:      "Checkout submissions by result.",
		}, []string{"result"}),
		PaymentOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loomline",
			Subsystem: "payments",
			Name:      "outcomes_total",
			Help:      "Resolved payment outcomes by provider and status.",
		}, []string{"provider", "status"}),
		ShippingFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loomline",
			Subsystem: "shipping",
			Name:      "fallback_rates_total",
			Help:      "Times the synthetic fallback rate was served.",
		}),
		CartSyncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loomline",
			Subsystem: "cart",
			Name:      "identity_syncs_total",
			Help:      "Identity-transition cart syncs by result.",
		}, []string{"result"}),
	}
}
