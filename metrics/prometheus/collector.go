// Package prometheus exports tabula metrics through prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/tabula/metrics"
)

var _ metrics.Collector = (*Collector)(nil)

// Collector implements metrics.Collector on Prometheus vectors.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	elements    *prometheus.CounterVec
	pulls       *prometheus.CounterVec
	conversions *prometheus.CounterVec
	transferred *prometheus.CounterVec
}

// New creates a Collector and registers its vectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabula_operation_latency_seconds",
			Help:    "Latency of block operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "table", "status"}),
		elements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_block_elements_total",
			Help: "Elements moved by block pulls and pushes",
		}, []string{"op", "table"}),
		pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_pulls_total",
			Help: "Block pulls by result mode",
		}, []string{"table", "mode"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_converted_elements_total",
			Help: "Elements converted per element type pair",
		}, []string{"from", "to"}),
		transferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabula_transfer_bytes_total",
			Help: "Bytes staged between host and device",
		}, []string{"direction"}),
	}
	for _, col := range []prometheus.Collector{c.opLatency, c.elements, c.pulls, c.conversions, c.transferred} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordPull implements metrics.Collector.
func (c *Collector) RecordPull(table string, elements int, aliased bool, d time.Duration, err error) {
	c.opLatency.WithLabelValues("pull", table, status(err)).Observe(d.Seconds())
	if err != nil {
		return
	}
	c.elements.WithLabelValues("pull", table).Add(float64(elements))
	mode := "copy"
	if aliased {
		mode = "alias"
	}
	c.pulls.WithLabelValues(table, mode).Inc()
}

// RecordPush implements metrics.Collector.
func (c *Collector) RecordPush(table string, elements int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("push", table, status(err)).Observe(d.Seconds())
	if err == nil {
		c.elements.WithLabelValues("push", table).Add(float64(elements))
	}
}

// RecordConversion implements metrics.Collector.
func (c *Collector) RecordConversion(from, to string, elements int, _ time.Duration) {
	c.conversions.WithLabelValues(from, to).Add(float64(elements))
}

// RecordTransfer implements metrics.Collector.
func (c *Collector) RecordTransfer(direction string, bytes int, _ time.Duration) {
	c.transferred.WithLabelValues(direction).Add(float64(bytes))
}
