// Package metrics exposes portal auth activity as Prometheus metrics.
//
// A Recorder is an auth.ActivitySink: hand it to the backend, the session
// context or the route guard and every recorded event is counted.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/patientipr/portal-auth"
)

const namespace = "portal_auth"

// Recorder counts auth activity events
type Recorder struct {
	registry *prometheus.Registry

	// EventsTotal counts every activity event.
	// Labels:
	//   - type: the activity event type (e.g. "auth.login.success")
	//   - role: the session role, empty when unknown
	EventsTotal *prometheus.CounterVec

	// LoginFailuresTotal counts rejected logins.
	// Label:
	//   - reason: a credential failure reason, or "internal"
	LoginFailuresTotal *prometheus.CounterVec

	// AccessDeniedTotal counts guard rejections of authenticated sessions
	AccessDeniedTotal prometheus.Counter
}

// NewRecorder registers the collectors on a private registry that also
// carries the process and Go collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return NewRecorderWith(reg)
}

// NewRecorderWith registers the collectors on reg
func NewRecorderWith(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_events_total",
				Help:      "Total number of auth activity events, by type and role.",
			},
			[]string{"type", "role"},
		),
		LoginFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_failures_total",
				Help:      "Total number of rejected login attempts, by reason.",
			},
			[]string{"reason"},
		),
		AccessDeniedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_denied_total",
				Help:      "Total number of requests rejected for a wrong role.",
			},
		),
	}

	reg.MustRegister(r.EventsTotal, r.LoginFailuresTotal, r.AccessDeniedTotal)
	return r
}

// Record implements auth.ActivitySink
func (r *Recorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.EventsTotal.WithLabelValues(string(event.Type), string(event.Role)).Inc()

	switch event.Type {
	case auth.ActivityLoginFailure:
		reason := event.Reason
		if reason == "" {
			reason = "unknown"
		}
		r.LoginFailuresTotal.WithLabelValues(reason).Inc()
	case auth.ActivityAccessDenied:
		r.AccessDeniedTotal.Inc()
	}

	return nil
}

// Registry returns the registry backing the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
