package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveReview("achievement", "approve")
	m.ObserveReview("achievement", "approve")
	m.ObserveReview("volunteering", "reject")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reviews.WithLabelValues("achievement", "approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reviews.WithLabelValues("volunteering", "reject")))
	assert.Zero(t, testutil.ToFloat64(m.reviews.WithLabelValues("certificate", "approve")))

	m.ObserveJob("report_schedules", nil)
	m.ObserveJob("report_schedules", errors.New("db down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("report_schedules", "failure")))

	m.ObserveRequest(http.MethodPost, "/v1/:kind/:id/review", http.StatusOK, 20*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodPost, "/v1/:kind/:id/review", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `eduportal_reviews_total{action="approve",kind="achievement"} 2`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_isolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveReview("certificate", "approve")
	assert.Zero(t, testutil.ToFloat64(b.reviews.WithLabelValues("certificate", "approve")))
}
