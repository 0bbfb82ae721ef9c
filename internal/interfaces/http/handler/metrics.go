package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fraud-graph-engine/internal/monitor"
)

// monitorCollector exposes the performance monitor's streams as Prometheus
// metrics. Aggregates come from the 1-minute window on each scrape.
type monitorCollector struct {
	mon *monitor.Monitor

	samples *prometheus.Desc
	failed  *prometheus.Desc
	avgMs   *prometheus.Desc
	p95Ms   *prometheus.Desc
	qps     *prometheus.Desc
	dropped *prometheus.Desc
}

func newMonitorCollector(mon *monitor.Monitor) *monitorCollector {
	streamLabel := []string{"stream"}
	return &monitorCollector{
		mon: mon,
		samples: prometheus.NewDesc("fraud_stream_success_total",
			"Successful samples per stream", streamLabel, nil),
		failed: prometheus.NewDesc("fraud_stream_failure_total",
			"Failed samples per stream", streamLabel, nil),
		avgMs: prometheus.NewDesc("fraud_stream_latency_avg_ms",
			"Average latency over the last minute in milliseconds", streamLabel, nil),
		p95Ms: prometheus.NewDesc("fraud_stream_latency_p95_ms",
			"95th percentile latency over the last minute in milliseconds", streamLabel, nil),
		qps: prometheus.NewDesc("fraud_stream_qps",
			"Throughput of the most recent completed bucket", streamLabel, nil),
		dropped: prometheus.NewDesc("fraud_monitor_dropped_samples_total",
			"Samples discarded because the monitor channel was full", nil, nil),
	}
}

func (c *monitorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.samples
	ch <- c.failed
	ch <- c.avgMs
	ch <- c.p95Ms
	ch <- c.qps
	ch <- c.dropped
}

func (c *monitorCollector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.mon.AllStats(1) {
		ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(s.Success), name)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failure), name)
		ch <- prometheus.MustNewConstMetric(c.avgMs, prometheus.GaugeValue, s.Avg, name)
		ch <- prometheus.MustNewConstMetric(c.p95Ms, prometheus.GaugeValue, s.P95, name)
		ch <- prometheus.MustNewConstMetric(c.qps, prometheus.GaugeValue, s.QPS, name)
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.mon.Dropped()))
}

// MetricsHandler returns the Prometheus metrics handler with the monitor's
// streams registered alongside the Go runtime collectors
func MetricsHandler(mon *monitor.Monitor) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newMonitorCollector(mon),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
