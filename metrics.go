package whep

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts signaling traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests   *prometheus.CounterVec
	flushes    prometheus.Counter
	candidates prometheus.Counter
	events     *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, or on nothing if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whep",
			Name:      "requests_total",
			Help:      "Signaling requests sent, by operation and response code.",
		}, []string{"op", "code"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whep",
			Name:      "trickle_flushes_total",
			Help:      "Trickle ICE fragments sent.",
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whep",
			Name:      "trickle_candidates_total",
			Help:      "Local ICE candidates sent in trickle fragments.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whep",
			Name:      "events_total",
			Help:      "Server-sent events received, by event name.",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.flushes, m.candidates, m.events)
	}
	return m
}

func (m *Metrics) request(op, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, code).Inc()
}

func (m *Metrics) flush(candidates int) {
	if m == nil {
		return
	}
	m.flushes.Inc()
	m.candidates.Add(float64(candidates))
}

func (m *Metrics) event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}
