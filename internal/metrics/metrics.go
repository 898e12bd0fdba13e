// Package metrics provides Prometheus counters for the support widget and bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "supportline"

// Metrics groups the collectors on a private registry. Every method is
// safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	reg *prometheus.Registry

	ConnectAttempts   prometheus.Counter
	ConnectErrors     prometheus.Counter
	Failovers         prometheus.Counter
	DeepLinkFallbacks prometheus.Counter
	MessagesSent      prometheus.Counter
	MessagesReceived  prometheus.Counter
	BridgeSessions    *prometheus.GaugeVec
	BridgeFrames      *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connector",
			Name: "connect_attempts_total", Help: "Primary bridge connection attempts",
		}),
		ConnectErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connector",
			Name: "connect_errors_total", Help: "Primary bridge connection attempts that failed",
		}),
		Failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "failover",
			Name: "activations_total", Help: "Switches from the primary bridge to the secondary widget",
		}),
		DeepLinkFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "widget",
			Name: "deeplink_fallbacks_total", Help: "Activations that ended on the messaging deep link",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connector",
			Name: "messages_sent_total", Help: "Visitor messages sent over the primary bridge",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connector",
			Name: "messages_received_total", Help: "Agent messages received over the primary bridge",
		}),
		BridgeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bridge",
			Name: "sessions", Help: "Open bridge sessions by transport",
		}, []string{"transport"}),
		BridgeFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge",
			Name: "frames_total", Help: "Frames handled by the bridge by direction",
		}, []string{"direction"}),
	}
	m.reg.MustRegister(
		m.ConnectAttempts, m.ConnectErrors, m.Failovers, m.DeepLinkFallbacks,
		m.MessagesSent, m.MessagesReceived, m.BridgeSessions, m.BridgeFrames,
	)
	return m
}

// Registry exposes the underlying registry (used by tests and custom exporters).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectAttempt() {
	if m != nil {
		m.ConnectAttempts.Inc()
	}
}

func (m *Metrics) ConnectError() {
	if m != nil {
		m.ConnectErrors.Inc()
	}
}

func (m *Metrics) Failover() {
	if m != nil {
		m.Failovers.Inc()
	}
}

func (m *Metrics) DeepLinkFallback() {
	if m != nil {
		m.DeepLinkFallbacks.Inc()
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) MessageReceived() {
	if m != nil {
		m.MessagesReceived.Inc()
	}
}

// SessionOpened and SessionClosed track bridge sessions per transport.
func (m *Metrics) SessionOpened(transport string) {
	if m != nil {
		m.BridgeSessions.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) SessionClosed(transport string) {
	if m != nil {
		m.BridgeSessions.WithLabelValues(transport).Dec()
	}
}

// Frame counts a bridge frame; direction is "in" or "out".
func (m *Metrics) Frame(direction string) {
	if m != nil {
		m.BridgeFrames.WithLabelValues(direction).Inc()
	}
}
