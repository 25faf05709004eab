// Package metrics exposes request and instruction counters of the investment manager to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const namespace = "lpinvest"

// Collector holds the investment manager metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	CommandsTotal  *prometheus.CounterVec
}

// NewCollector creates a collector. Process and Go runtime collectors are registered too.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "total",
			Help:      "Investment requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	c.RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "latency_seconds",
			Help:      "Investment request latency",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	c.CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "total",
			Help:      "Fund-movement instructions issued through account invoke",
		},
		[]string{"kind"},
	)

	c.registry.MustRegister(
		c.RequestsTotal,
		c.RequestLatency,
		c.CommandsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// ObserveRequest records the outcome and latency of one request.
func (c *Collector) ObserveRequest(op string, err error, took time.Duration) {
	c.RequestsTotal.WithLabelValues(op, Outcome(err)).Inc()
	c.RequestLatency.WithLabelValues(op).Observe(took.Seconds())
}

// CommandIssued counts an executed instruction.
func (c *Collector) CommandIssued(kind domain.CommandKind) {
	c.CommandsTotal.WithLabelValues(string(kind)).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

var outcomes = []struct {
	err   error
	label string
}{
	{domain.ErrNotOwner, "not_owner"},
	{domain.ErrAccountLocked, "account_locked"},
	{domain.ErrPoolNotFound, "pool_not_found"},
	{domain.ErrPoolEmpty, "pool_empty"},
	{domain.ErrInsufficientLiquidity, "insufficient_liquidity"},
	{domain.ErrInvalidFraction, "invalid_fraction"},
	{domain.ErrInsufficientNativeBalance, "insufficient_native_balance"},
	{domain.ErrArithmeticOverflow, "arithmetic_overflow"},
	{domain.ErrZeroAmount, "zero_amount"},
}

// Outcome maps a request error to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}
