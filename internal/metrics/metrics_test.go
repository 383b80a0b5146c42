package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct{}

func (fakeQueue) Depth() int      { return 3 }
func (fakeQueue) Sent() uint64    { return 7 }
func (fakeQueue) Failed() uint64  { return 1 }
func (fakeQueue) Dropped() uint64 { return 2 }

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/quiz/view/:quizid", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quiz/view/7", nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()

	assert.Contains(t, body, `quizgen_http_requests_total{method="GET",route="/quiz/view/:quizid",status="404"} 2`)
	assert.Contains(t, body, `quizgen_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, "quizgen_http_requests_in_flight 0")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCacheLookup(CacheHit)
		m.ObserveGenerator("hint", errors.New("boom"))
	})
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	RegisterMailQueue(reg, fakeQueue{})
	m.ObserveCacheLookup(CacheMiss)
	m.ObserveGenerator("quiz", nil)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `quizgen_quiz_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, body, `quizgen_generator_calls_total{outcome="ok",purpose="quiz"} 1`)
	assert.Contains(t, body, "quizgen_mail_queue_depth 3")
	assert.Contains(t, body, "quizgen_mail_dropped_total 2")
}
