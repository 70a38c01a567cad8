package prometheus

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusAdapter struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rentals         *prometheus.CounterVec
	payments        *prometheus.HistogramVec
}

func NewPrometheusAdapter() *PrometheusAdapter {
	return newPrometheusAdapter(prometheus.DefaultRegisterer)
}

func newPrometheusAdapter(reg prometheus.Registerer) *PrometheusAdapter {
	return &PrometheusAdapter{
		requests: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"})),
		requestDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})),
		rentals: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentals_total",
			Help: "Rental attempts by outcome",
		}, []string{"outcome"})),
		payments: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_settlement_seconds",
			Help:    "Time from charge to settlement",
			Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5, 10},
		}, []string{"outcome"})),
	}
}

// register returns the already registered collector when c was registered before.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (p *PrometheusAdapter) RecordMetrics(c *gin.Context, start time.Time) {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	status := strconv.Itoa(c.Writer.Status())
	p.requests.WithLabelValues(c.Request.Method, path, status).Inc()
	p.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
}

func (p *PrometheusAdapter) RecordRental(outcome string) {
	p.rentals.WithLabelValues(outcome).Inc()
}

func (p *PrometheusAdapter) ObservePayment(outcome string, took time.Duration) {
	p.payments.WithLabelValues(outcome).Observe(took.Seconds())
}
