package webtransport

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors a Session updates over its
// lifetime. Construct with NewMetrics and register the embedded
// collectors with a registry of the caller's choosing; the session core
// itself never touches a global registry.
type Metrics struct {
	sessionsOpened        prometheus.Counter
	sessionsReady         prometheus.Counter
	sessionsClosedLocally prometheus.Counter
	sessionsClosed        prometheus.Counter
	streamsAssociated     *prometheus.CounterVec
	datagramsSent         prometheus.Counter
	datagramsReceived     prometheus.Counter
}

// NewMetrics builds a Metrics instance whose collectors carry the given
// const labels (e.g. a listener or connection identifier). Pass nil for
// no const labels. Callers register the returned collectors with a
// *prometheus.Registry themselves via Collectors.
func NewMetrics(constLabels prometheus.Labels) *Metrics {
	return &Metrics{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "sessions_opened_total",
			Help:        "WebTransport sessions constructed.",
			ConstLabels: constLabels,
		}),
		sessionsReady: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "sessions_ready_total",
			Help:        "WebTransport sessions that reached the ready state.",
			ConstLabels: constLabels,
		}),
		sessionsClosedLocally: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "sessions_closed_locally_total",
			Help:        "WebTransport sessions closed via a local CloseSession call.",
			ConstLabels: constLabels,
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "sessions_closed_total",
			Help:        "WebTransport sessions that reached the closed-and-notified state.",
			ConstLabels: constLabels,
		}),
		streamsAssociated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "streams_associated_total",
			Help:        "Data streams associated with a session, by kind and direction.",
			ConstLabels: constLabels,
		}, []string{"kind", "direction"}),
		datagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "datagrams_sent_total",
			Help:        "Datagrams handed to the platform for sending.",
			ConstLabels: constLabels,
		}),
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "webtransport",
			Name:        "datagrams_received_total",
			Help:        "Datagrams delivered to a session's visitor.",
			ConstLabels: constLabels,
		}),
	}
}

// Collectors returns every collector in m, for registration with a
// *prometheus.Registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsOpened,
		m.sessionsReady,
		m.sessionsClosedLocally,
		m.sessionsClosed,
		m.streamsAssociated,
		m.datagramsSent,
		m.datagramsReceived,
	}
}
