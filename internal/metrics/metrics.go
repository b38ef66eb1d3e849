package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inbound results.
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// Auto-reply sources.
const (
	SourceAI       = "ai"
	SourceFallback = "ai_fallback"
	SourceRules    = "rules"
)

// Metrics groups the pipeline collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	inbound          *prometheus.CounterVec
	handoffs         prometheus.Counter
	autoReplies      *prometheus.CounterVec
	outboundFailures prometheus.Counter
	aiLatency        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copilot",
			Name:      "inbound_messages_total",
			Help:      "Inbound WhatsApp messages by processing result.",
		}, []string{"result"}),
		handoffs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copilot",
			Name:      "handoffs_total",
			Help:      "Conversations handed from AI to an operator by keyword.",
		}),
		autoReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copilot",
			Name:      "auto_replies_total",
			Help:      "Automatic replies sent in AI mode by source.",
		}, []string{"source"}),
		outboundFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copilot",
			Name:      "outbound_failures_total",
			Help:      "Outbound WhatsApp deliveries that failed and were swallowed.",
		}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "copilot",
			Name:      "ai_request_seconds",
			Help:      "Latency of text-generation calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"purpose", "outcome"}),
	}
	m.Registry.MustRegister(
		m.inbound, m.handoffs, m.autoReplies, m.outboundFailures, m.aiLatency,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// The recorders below are nil-safe so modules can run without metrics.

func (m *Metrics) Inbound(result string) {
	if m != nil {
		m.inbound.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Handoff() {
	if m != nil {
		m.handoffs.Inc()
	}
}

func (m *Metrics) AutoReply(source string) {
	if m != nil {
		m.autoReplies.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) OutboundFailure() {
	if m != nil {
		m.outboundFailures.Inc()
	}
}

func (m *Metrics) ObserveAI(purpose string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aiLatency.WithLabelValues(purpose, outcome).Observe(time.Since(started).Seconds())
}
