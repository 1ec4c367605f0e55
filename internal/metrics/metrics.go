// Package metrics exposes Prometheus counters and gauges for the
// honeypot's admission, upload, and housekeeper activity, grounded on the
// teacher's own pkg/metrics usage of client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the honeypot reports.
type Registry struct {
	loginsAdmitted     prometheus.Counter
	loginsDenied       prometheus.Counter
	uploadsReceived    prometheus.Counter
	housekeeperRuns    prometheus.Counter
	concurrentSessions prometheus.Gauge
}

// New creates the honeypot's collectors without registering them;
// MustRegister registers them against a caller-supplied registry rather
// than the global default, so tests and multiple instances don't collide.
func New() *Registry {
	r := &Registry{
		loginsAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "ftp",
			Name:      "logins_admitted_total",
			Help:      "Number of PASS attempts that were admitted.",
		}),
		loginsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "ftp",
			Name:      "logins_denied_total",
			Help:      "Number of PASS attempts that were not admitted.",
		}),
		uploadsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "ftp",
			Name:      "uploads_received_total",
			Help:      "Number of STOR uploads received.",
		}),
		housekeeperRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "honeypot",
			Subsystem: "housekeeper",
			Name:      "runs_total",
			Help:      "Number of completed housekeeper ticks.",
		}),
		concurrentSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "honeypot",
			Subsystem: "ftp",
			Name:      "concurrent_sessions",
			Help:      "Number of currently open control connections.",
		}),
	}
	return r
}

// MustRegister registers every collector against reg, panicking on a
// duplicate-registration error (a programmer mistake, not a runtime one).
func (r *Registry) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		r.loginsAdmitted,
		r.loginsDenied,
		r.uploadsReceived,
		r.housekeeperRuns,
		r.concurrentSessions,
	)
}

func (r *Registry) LoginAdmitted()  { r.loginsAdmitted.Inc() }
func (r *Registry) LoginDenied()    { r.loginsDenied.Inc() }
func (r *Registry) UploadReceived() { r.uploadsReceived.Inc() }
func (r *Registry) HousekeeperRan() { r.housekeeperRuns.Inc() }
func (r *Registry) SessionStarted() { r.concurrentSessions.Inc() }
func (r *Registry) SessionEnded()   { r.concurrentSessions.Dec() }

// Handler builds the /metrics HTTP endpoint, off by default and only
// mounted when the operator enables it in configuration.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
