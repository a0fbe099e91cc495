package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.EventConsumed("passport.created", OutcomeOK)
	m.EventConsumed("passport.created", OutcomeOK)
	m.EventPublished("passport.created", OutcomeError)
	m.DeliveryAttempt("file", OutcomeOK, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsConsumed.WithLabelValues("passport.created", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("passport.created", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsDelivered.WithLabelValues("file", OutcomeOK)))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.EventConsumed("x", OutcomeOK)
		m.EventPublished("x", OutcomeOK)
		m.DeliveryAttempt("email", OutcomeError, time.Second)
	})
}

func TestMetrics_GinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/notifications/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/notifications/:id", "204")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "passport_notifier_http_requests_total"))
}
