package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so wiring metrics stays optional.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Application lifecycle metrics
	AppsActive prometheus.Gauge
	AppStarts  prometheus.Counter
	AppStops   prometheus.Counter

	// Fault and watchdog dispatch metrics
	FaultActions     *prometheus.CounterVec
	WatchdogTimeouts *prometheus.CounterVec

	// AppProc broker metrics
	AppProcRefs     prometheus.Gauge
	SessionsActive  prometheus.Gauge
	SessionsCleaned prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector on the given registerer.
// Tests pass a private registry so collectors never collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supervisor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "supervisor_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		AppsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_apps_active",
			Help: "Number of applications on the active list",
		}),
		AppStarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "supervisor_app_starts_total",
			Help: "Total number of application starts",
		}),
		AppStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "supervisor_app_stops_total",
			Help: "Total number of observed application stops",
		}),

		FaultActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supervisor_fault_actions_total",
				Help: "Fault actions applied, by action",
			},
			[]string{"action"},
		),
		WatchdogTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supervisor_watchdog_timeouts_total",
				Help: "Watchdog timeouts dispatched, by action",
			},
			[]string{"action"},
		),

		AppProcRefs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_appproc_refs",
			Help: "Live client-held application process references",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_appproc_sessions_active",
			Help: "Open appProc client sessions",
		}),
		SessionsCleaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "supervisor_appproc_sessions_cleaned_total",
			Help: "Sessions whose references were purged on close",
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supervisor_uptime_seconds",
			Help: "Supervisor uptime in seconds",
		}),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetAppsActive records the current size of the active list.
func (m *Metrics) SetAppsActive(n int) {
	if m == nil {
		return
	}
	m.AppsActive.Set(float64(n))
}

// RecordAppStart records one application start.
func (m *Metrics) RecordAppStart() {
	if m == nil {
		return
	}
	m.AppStarts.Inc()
}

// RecordAppStop records one observed application stop.
func (m *Metrics) RecordAppStop() {
	if m == nil {
		return
	}
	m.AppStops.Inc()
}

// RecordFaultAction records one applied fault action.
func (m *Metrics) RecordFaultAction(action string) {
	if m == nil {
		return
	}
	m.FaultActions.WithLabelValues(action).Inc()
}

// RecordWatchdogTimeout records one dispatched watchdog timeout.
func (m *Metrics) RecordWatchdogTimeout(action string) {
	if m == nil {
		return
	}
	m.WatchdogTimeouts.WithLabelValues(action).Inc()
}

// SetAppProcRefs records the number of live appProc references.
func (m *Metrics) SetAppProcRefs(n int) {
	if m == nil {
		return
	}
	m.AppProcRefs.Set(float64(n))
}

// SessionOpened records a new appProc client session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// SessionClosed records an appProc client session close.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsCleaned.Inc()
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	if m == nil {
		return
	}
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
