// Package metrics — prometheus-счётчики запросов репозиториев и HTTP-адаптера.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entrepo/internal/errs"
)

// Collector держит свой prometheus.Registry: несколько Store в одном
// процессе (например, в тестах) не конфликтуют при регистрации.
// Nil *Collector допустим и ничего не делает.
type Collector struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	rows          *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "entrepo"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Repository operations by entity, operation and outcome.",
		},
		[]string{"entity", "op", "status"},
	)
	c.queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of repository operations, includes relation expansion.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"entity", "op"},
	)
	c.rows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows returned or affected by repository operations.",
		},
		[]string{"entity", "op"},
	)
	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	c.registry.MustRegister(
		c.queries,
		c.queryDuration,
		c.rows,
		c.httpRequests,
		c.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return c
}

// Registry — для тестов и дополнительных коллекторов.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveQuery фиксирует одну операцию репозитория.
func (c *Collector) ObserveQuery(entity, op string, took time.Duration, rows int, err error) {
	if c == nil {
		return
	}
	c.queries.WithLabelValues(entity, op, Status(err)).Inc()
	c.queryDuration.WithLabelValues(entity, op).Observe(took.Seconds())
	if err == nil && rows > 0 {
		c.rows.WithLabelValues(entity, op).Add(float64(rows))
	}
}

// ObserveHTTP фиксирует один HTTP-запрос; route — шаблон маршрута, не путь.
func (c *Collector) ObserveHTTP(method, route, status string, took time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, status).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Handler отдаёт /metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Status — короткая метка исхода по виду ошибки.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrValidation):
		return "validation"
	case errors.Is(err, errs.ErrGuardedMutation):
		return "guarded"
	case errors.Is(err, errs.ErrInactiveTransaction):
		return "inactive_tx"
	case errors.Is(err, errs.ErrConstraintViolation):
		return "constraint"
	case errors.Is(err, errs.ErrUnresolvedReference):
		return "unresolved"
	}
	return "error"
}
