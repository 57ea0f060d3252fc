package calculator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Omission reasons used as the "reason" label.
const (
	reasonUnavailable = "unavailable"
	reasonLoad        = "load"
	reasonComputation = "computation"
)

// Metrics instruments metric computation.
type Metrics struct {
	Duration *prometheus.HistogramVec
	Rows     *prometheus.CounterVec
	Omitted  *prometheus.CounterVec
	Loads    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mtdetect_metric_duration_seconds",
			Help:    "Time spent computing one metric over a dataset",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"metric"}),
		Rows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mtdetect_metric_rows_total",
			Help: "Rows scored per metric",
		}, []string{"metric"}),
		Omitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mtdetect_metric_omitted_total",
			Help: "Requested metrics left out of a score table",
		}, []string{"metric", "reason"}),
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mtdetect_metric_backend_loads_total",
			Help: "Metric backends instantiated",
		}, []string{"metric"}),
	}
}

func (m *Metrics) observe(metric string, d time.Duration, rows int) {
	m.Duration.WithLabelValues(metric).Observe(d.Seconds())
	m.Rows.WithLabelValues(metric).Add(float64(rows))
}
