package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the conversion counters exported by the pipeline.
type Metrics struct {
	conversions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flipbook_conversions_total",
				Help: "Total number of conversion pipeline runs by outcome.",
			},
			[]string{"file_type", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flipbook_conversion_duration_seconds",
				Help:    "Wall-clock duration of conversion pipeline runs.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"file_type"},
		),
	}

	if err := reg.Register(m.conversions); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(fileType, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(fileType, outcome).Inc()
	m.duration.WithLabelValues(fileType).Observe(time.Since(started).Seconds())
}
