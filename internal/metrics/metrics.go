package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the portal's Prometheus collectors. Collectors are
// registered against an injected registerer so tests can use isolated
// registries.
type Metrics struct {
	loginsGranted   prometheus.Counter
	loginsDenied    *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sweepTerminated prometheus.Counter
}

// New registers the portal collectors with reg and returns the handle
// used by the admission service and the sweeper.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		loginsGranted: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_logins_granted_total",
			Help: "Total number of admissions granted",
		}),
		loginsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_denied_total",
			Help: "Total number of admissions denied, by reason",
		}, []string{"reason"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portal_sessions_active",
			Help: "Number of currently active sessions",
		}),
		sweepTerminated: factory.NewCounter(prometheus.CounterOpts{
			Name: "portal_sweep_terminated_total",
			Help: "Total number of sessions terminated by the expiry sweep",
		}),
	}
}

func (m *Metrics) LoginGranted() {
	m.loginsGranted.Inc()
}

func (m *Metrics) LoginDenied(reason string) {
	m.loginsDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetActiveSessions(count int) {
	m.sessionsActive.Set(float64(count))
}

func (m *Metrics) SweepTerminated(count int) {
	m.sweepTerminated.Add(float64(count))
}
