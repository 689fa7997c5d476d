package photohistory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	analyzed *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	degraded *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		analyzed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photohistory_items_analyzed_total",
				Help: "Items whose analysis was written",
			},
			nil,
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photohistory_items_skipped_total",
				Help: "Claimed items left unanalyzed, by reason",
			},
			[]string{"reason"},
		),
		degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photohistory_classifier_degraded_total",
				Help: "Classifier capability failures replaced by an empty default",
			},
			[]string{"capability"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "photohistory_item_duration_seconds",
				Help:    "Time from claim to stored analysis",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.analyzed, m.skipped, m.degraded, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) itemAnalyzed(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analyzed.WithLabelValues().Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) itemSkipped(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) classifierDegraded(capability string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(capability).Inc()
}
