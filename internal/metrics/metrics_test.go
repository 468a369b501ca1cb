package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveQuery_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveQuery("member.get", "ok", 3*time.Millisecond)
	c.ObserveQuery("member.get", "ok", 5*time.Millisecond)
	c.ObserveQuery("member.get", "not_found", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.queries.WithLabelValues("member.get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("member.get", "not_found")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.queryLatency))
}

func TestGaugesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetOccupiedSeats(7)
	c.SessionExpired()
	c.EventPublished("order.placed", nil)
	c.EventPublished("order.placed", errors.New("closed"))

	assert.Equal(t, 7.0, testutil.ToFloat64(c.occupied))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.expired))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.published.WithLabelValues("order.placed", "error")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.SetOccupiedSeats(2)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "kiosk_seats_occupied 2")
}
