package metrics

import (
	"github.com/indigo-web/reactor/http/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reactor"

// Metrics are the reactor counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Accepted       prometheus.Counter
	AcceptFailures prometheus.Counter
	Active         prometheus.Gauge
	Requests       prometheus.Counter
	ProtocolErrors *prometheus.CounterVec
	IdleTimeouts   prometheus.Counter
	Rebuilds       prometheus.Counter
	BytesRead      prometheus.Counter
	BytesWritten   prometheus.Counter
}

// New creates the metrics and registers them in the registerer. Passing nil creates
// metrics which aren't registered anywhere.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accepted_total",
			Help:      "Total number of accepted connections",
		}),
		AcceptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "accept_failures_total",
			Help:      "Total number of connections which failed to be accepted or configured",
		}),
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of currently open client connections",
		}),
		Requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of complete requests dispatched",
		}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "protocol_errors_total",
			Help:      "Total number of rejected requests by response code",
		}, []string{"code"}),
		IdleTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "idle_timeouts_total",
			Help:      "Total number of connections closed due to inactivity",
		}),
		Rebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listeners",
			Name:      "rebuilds_total",
			Help:      "Total number of listeners rebuilt after an error",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "net",
			Name:      "read_bytes_total",
			Help:      "Total number of bytes received from clients",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "net",
			Name:      "written_bytes_total",
			Help:      "Total number of bytes sent to clients",
		}),
	}
}

func (m *Metrics) OnAccept() {
	if m != nil {
		m.Accepted.Inc()
		m.Active.Inc()
	}
}

func (m *Metrics) OnAcceptFailure() {
	if m != nil {
		m.AcceptFailures.Inc()
	}
}

func (m *Metrics) OnClose() {
	if m != nil {
		m.Active.Dec()
	}
}

func (m *Metrics) OnRequest() {
	if m != nil {
		m.Requests.Inc()
	}
}

func (m *Metrics) OnProtocolError(err error) {
	if m != nil {
		m.ProtocolErrors.WithLabelValues(status.StringCode(status.FromError(err).Code)).Inc()
	}
}

func (m *Metrics) OnIdleTimeout() {
	if m != nil {
		m.IdleTimeouts.Inc()
	}
}

func (m *Metrics) OnRebuild() {
	if m != nil {
		m.Rebuilds.Inc()
	}
}

func (m *Metrics) OnRead(n int) {
	if m != nil {
		m.BytesRead.Add(float64(n))
	}
}

func (m *Metrics) OnWrite(n int) {
	if m != nil {
		m.BytesWritten.Add(float64(n))
	}
}
