package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "snaplink"

// Metrics counts link service signals. It satisfies service.Observer.
type Metrics struct {
	linksCreated       prometheus.Counter
	createAttempts     prometheus.Histogram
	idCollisions       prometheus.Counter
	collisionExhausted prometheus.Counter
	redirects          *prometheus.CounterVec
	clicksRecorded     prometheus.Counter
	clickFailures      prometheus.Counter
}

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links created.",
		}),
		createAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_create_attempts",
			Help:      "Identifier attempts needed per created link.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		idCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_id_collisions_total",
			Help:      "Generated identifiers that were already taken.",
		}),
		collisionExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_collisions_exhausted_total",
			Help:      "Create requests that ran out of identifier attempts.",
		}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect resolutions by outcome.",
		}, []string{"outcome"}),
		clicksRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events written to the click store.",
		}),
		clickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_failures_total",
			Help:      "Click events that could not be recorded.",
		}),
	}

	reg.MustRegister(
		m.linksCreated,
		m.createAttempts,
		m.idCollisions,
		m.collisionExhausted,
		m.redirects,
		m.clicksRecorded,
		m.clickFailures,
	)
	return m
}

func (m *Metrics) LinkCreated(_ string, attempts int) {
	m.linksCreated.Inc()
	m.createAttempts.Observe(float64(attempts))
}

func (m *Metrics) IDCollision(string, int) {
	m.idCollisions.Inc()
}

func (m *Metrics) CollisionExhausted(int) {
	m.collisionExhausted.Inc()
}

func (m *Metrics) Resolved(_ string, outcome string) {
	m.redirects.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClickRecorded(string) {
	m.clicksRecorded.Inc()
}

func (m *Metrics) ClickFailed(string, error) {
	m.clickFailures.Inc()
}
