// Package metrics exposes Prometheus collectors for adjudications, validations and reviews.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cargoclaro/glosa-sub000/constants"
)

// Collector implements llm.Observer and validation.Observer.
type Collector struct {
	adjudications        *prometheus.CounterVec
	adjudicationDuration *prometheus.HistogramVec
	validations          *prometheus.CounterVec
	reviews              *prometheus.CounterVec
	reviewDuration       prometheus.Histogram
	queueDepth           prometheus.Gauge
}

// New registers the collectors on reg. Use a fresh registry per test.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		adjudications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_adjudications_total",
				Help: "Adjudicator calls by request kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		adjudicationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "glosa_adjudication_duration_seconds",
				Help:    "Adjudicator call latency",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 90},
			},
			[]string{"kind"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_validations_total",
				Help: "Validation results by section and outcome",
			},
			[]string{"section", "outcome"},
		),
		reviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "glosa_reviews_total",
				Help: "Expediente reviews by status",
			},
			[]string{"status"},
		),
		reviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glosa_review_duration_seconds",
			Help:    "End-to-end expediente review time",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glosa_review_queue_depth",
			Help: "Review jobs waiting for a worker",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{
		c.adjudications, c.adjudicationDuration, c.validations, c.reviews, c.reviewDuration, c.queueDepth,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) ObserveAdjudication(kind, outcome string, elapsed time.Duration) {
	c.adjudications.WithLabelValues(kind, outcome).Inc()
	c.adjudicationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveValidation(section string, outcome constants.Outcome) {
	c.validations.WithLabelValues(section, string(outcome)).Inc()
}

// ObserveReview records one finished review; status is "ok", "rejected" or "failed".
func (c *Collector) ObserveReview(status string, elapsed time.Duration) {
	c.reviews.WithLabelValues(status).Inc()
	c.reviewDuration.Observe(elapsed.Seconds())
}

func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}
