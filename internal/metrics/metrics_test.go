package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveChat("Done", time.Second)
	m.ObserveLLM("first", time.Second)
	m.ToolCall("context_search", "ok")
	m.Retrieval("context", "ok")
	m.SetBackendUp(true)
	m.HTTPRequest("/chat", "POST", 200)
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.Retrieval("context", "unfiltered_retry")
	m.Retrieval("context", "unfiltered_retry")
	m.ToolCall("keyword_search", "error")
	m.SetBackendUp(true)
	m.HTTPRequest("/chat", "POST", 503)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/chat", "POST", "503")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retrievals.WithLabelValues("context", "unfiltered_retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("keyword_search", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendHealth))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveChat("DirectAnswer", 300*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bookrag_chat_requests_total{state="DirectAnswer"} 1`)
}
