// Package metrics exports Prometheus metrics for compilations, statement
// executions and schema reloads.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syssam/neoql"
	"github.com/syssam/neoql/dialect"
)

// Collector holds the neoql metrics. A nil *Collector records nothing.
type Collector struct {
	compileDuration *prometheus.HistogramVec
	compileFailures *prometheus.CounterVec
	execDuration    prometheus.Histogram
	execFailures    *prometheus.CounterVec
	schemaReloads   *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace sets the metric namespace. Default is "neoql".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithBuckets sets the histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) {
		o.buckets = b
	}
}

// New returns an unregistered collector.
func New(opts ...Option) *Collector {
	o := &options{namespace: "neoql", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(o)
	}
	return &Collector{
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Subsystem: "compile",
				Name:      "duration_seconds",
				Help:      "Duration of GraphQL to Cypher compilations in seconds",
				Buckets:   o.buckets,
			},
			[]string{"operation"},
		),
		compileFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Subsystem: "compile",
				Name:      "failures_total",
				Help:      "Total number of failed compilations by error kind",
			},
			[]string{"kind"},
		),
		execDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Subsystem: "exec",
				Name:      "duration_seconds",
				Help:      "Duration of compiled statement executions in seconds",
				Buckets:   o.buckets,
			},
		),
		execFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Subsystem: "exec",
				Name:      "failures_total",
				Help:      "Total number of failed statement executions by status code",
			},
			[]string{"code"},
		),
		schemaReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Subsystem: "schema",
				Name:      "reloads_total",
				Help:      "Total number of schema reloads by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all metrics on r.
func (c *Collector) Register(r prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.compileDuration,
		c.compileFailures,
		c.execDuration,
		c.execFailures,
		c.schemaReloads,
	} {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// ObserveCompile records one compilation of an operation of the given kind
// (query or mutation).
func (c *Collector) ObserveCompile(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	if operation == "" {
		operation = "query"
	}
	c.compileDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		c.compileFailures.WithLabelValues(Kind(err)).Inc()
	}
}

// ObserveExec records one statement execution.
func (c *Collector) ObserveExec(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.execDuration.Observe(d.Seconds())
	if err != nil {
		c.execFailures.WithLabelValues(StatusCode(err)).Inc()
	}
}

// SchemaReloaded records the outcome of a schema reload. Its signature
// matches the hook of schema.WithReloadHook when bound through a closure.
func (c *Collector) SchemaReloaded(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.schemaReloads.WithLabelValues(result).Inc()
}

// CompileFailures returns the compile failure counter, labeled by kind.
func (c *Collector) CompileFailures() *prometheus.CounterVec { return c.compileFailures }

// ExecFailures returns the execution failure counter, labeled by code.
func (c *Collector) ExecFailures() *prometheus.CounterVec { return c.execFailures }

// SchemaReloads returns the schema reload counter, labeled by result.
func (c *Collector) SchemaReloads() *prometheus.CounterVec { return c.schemaReloads }

// Kind returns the failure label of a compile error.
func Kind(err error) string {
	if code := neoql.Code(err); code != "" {
		return code
	}
	return "INTERNAL"
}

// StatusCode returns the failure label of an execution error: the status
// code of the first dialect.Error in its chain.
func StatusCode(err error) string {
	var e *dialect.Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "unknown"
}
