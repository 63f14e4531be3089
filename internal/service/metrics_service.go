package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the counters the
// ticket lifecycle emits.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	ticketsOpened   prometheus.Counter
	stepAdvances    *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	exports         *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	ticketsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_tickets_opened_total",
		Help: "Total maintenance tickets opened",
	})

	stepAdvances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_step_advances_total",
		Help: "Step transitions by target step",
	}, []string{"to_step"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_decisions_total",
		Help: "Admin approval decisions by outcome",
	}, []string{"outcome"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exports_total",
		Help: "Export jobs by format and final status",
	}, []string{"format", "status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ticketsOpened, stepAdvances, decisions, exports, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		ticketsOpened:   ticketsOpened,
		stepAdvances:    stepAdvances,
		decisions:       decisions,
		exports:         exports,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one handled request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// TicketOpened counts a newly created ticket.
func (m *MetricsService) TicketOpened() {
	if m == nil {
		return
	}
	m.ticketsOpened.Inc()
}

// StepAdvanced counts a transition into the given step.
func (m *MetricsService) StepAdvanced(toStep int) {
	if m == nil {
		return
	}
	m.stepAdvances.WithLabelValues(fmt.Sprintf("%d", toStep)).Inc()
}

// DecisionRecorded counts an approval outcome.
func (m *MetricsService) DecisionRecorded(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// ExportFinished counts a finished export job.
func (m *MetricsService) ExportFinished(format, status string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, status).Inc()
}
