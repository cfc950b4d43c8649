// Package metrics exposes validation results as Prometheus metrics.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/verifybib/source"
	"github.com/c360studio/verifybib/validation"
)

const namespace = "verifybib"

// Collector holds the metrics of one process. It owns a private registry so
// textfile exports contain nothing but verifybib series.
type Collector struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	findings     *prometheus.CounterVec
	entries      *prometheus.GaugeVec
	failedBlocks *prometheus.GaugeVec
	errorCount   *prometheus.GaugeVec
}

// NewCollector creates a collector with all series registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Validation runs by input file.",
		}, []string{"file"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings recorded, by severity and rule.",
		}, []string{"severity", "rule"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries parsed in the last run of a file.",
		}, []string{"file"}),
		failedBlocks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failed_blocks",
			Help:      "Blocks the parser rejected in the last run of a file.",
		}, []string{"file"}),
		errorCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors",
			Help:      "Error count of the last run of a file.",
		}, []string{"file"}),
	}

	c.registry.MustRegister(c.runs, c.findings, c.entries, c.failedBlocks, c.errorCount)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record adds one run. doc may be nil when the input never parsed.
func (c *Collector) Record(file string, store *validation.Store, doc *source.Document) {
	c.runs.WithLabelValues(file).Inc()

	for _, f := range store.Findings() {
		rule := string(f.Rule)
		if rule == "" {
			rule = "none"
		}
		c.findings.WithLabelValues(string(f.Severity), rule).Inc()
	}

	var entries, failed int
	if doc != nil {
		entries = len(doc.Entries)
		failed = len(doc.FailedBlocks)
	}
	c.entries.WithLabelValues(file).Set(float64(entries))
	c.failedBlocks.WithLabelValues(file).Set(float64(failed))
	c.errorCount.WithLabelValues(file).Set(float64(store.ErrorCount))
}

// WriteTextfile writes all series in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
