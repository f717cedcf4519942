package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncGeneration(t *testing.T) {
	before := testutil.ToFloat64(generations.WithLabelValues("ai", "pdf", "ok"))
	IncGeneration("ai", "pdf", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(generations.WithLabelValues("ai", "pdf", "ok")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ObserveStage("render", 20*time.Millisecond)
	ObserveHTTPRequest(http.MethodPost, "/generate", http.StatusOK, time.Second)

	r := gin.New()
	r.GET("/metrics", Handler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "docgen_stage_duration_seconds")
	assert.Contains(t, resp.Body.String(), `docgen_http_requests_total{method="POST",route="/generate",status="200"}`)
}
