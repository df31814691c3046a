// Package metrics holds the Prometheus collectors exported on /metrics.
// All methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	chatRequests  *prometheus.CounterVec
	chatDuration  prometheus.Histogram
	llmDuration   *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	retrievals    *prometheus.CounterVec
	backendHealth prometheus.Gauge
	httpRequests  *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrag_chat_requests_total",
			Help: "Chat requests by terminal agent state.",
		}, []string{"state"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookrag_chat_duration_seconds",
			Help:    "End-to-end chat request duration.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookrag_llm_request_duration_seconds",
			Help:    "Language model call duration by inference phase.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"phase"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrag_tool_calls_total",
			Help: "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrag_retrievals_total",
			Help: "Retrieval engine operations by path and outcome.",
		}, []string{"path", "outcome"}),
		backendHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookrag_tool_backend_up",
			Help: "1 when the tool backend session is healthy.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrag_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatRequests,
		m.chatDuration,
		m.llmDuration,
		m.toolCalls,
		m.retrievals,
		m.backendHealth,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveChat(state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(state).Inc()
	m.chatDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLLM(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

func (m *Metrics) ToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) Retrieval(path, outcome string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) SetBackendUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.backendHealth.Set(1)
	} else {
		m.backendHealth.Set(0)
	}
}

func (m *Metrics) HTTPRequest(route, method string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}
