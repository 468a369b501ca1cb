// Package metrics collects and exposes Prometheus metrics for the kiosk
// backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements repository.Recorder and the session manager's
// gauges.
type Collector struct {
	queries      *prometheus.CounterVec
	queryLatency *prometheus.HistogramVec
	occupied     prometheus.Gauge
	expired      prometheus.Counter
	published    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_db_calls_total",
			Help: "Data façade calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiosk_db_call_duration_seconds",
			Help:    "Latency of data façade calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_seats_occupied",
			Help: "Seats currently assigned or reserved.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_seat_sessions_expired_total",
			Help: "Seat sessions ended because the member ran out of time.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_events_published_total",
			Help: "Broker events by routing key and result.",
		}, []string{"event", "result"}),
	}

	reg.MustRegister(c.queries, c.queryLatency, c.occupied, c.expired, c.published)
	return c
}

// ObserveQuery records one façade call.
func (c *Collector) ObserveQuery(op, outcome string, d time.Duration) {
	c.queries.WithLabelValues(op, outcome).Inc()
	c.queryLatency.WithLabelValues(op).Observe(d.Seconds())
}

// SetOccupiedSeats sets the occupied-seat gauge.
func (c *Collector) SetOccupiedSeats(n int) { c.occupied.Set(float64(n)) }

// SessionExpired counts a seat released for lack of time.
func (c *Collector) SessionExpired() { c.expired.Inc() }

// EventPublished records the result of one broker publish.
func (c *Collector) EventPublished(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.published.WithLabelValues(event, result).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
