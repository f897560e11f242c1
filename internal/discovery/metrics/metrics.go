package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for provider discovery.
type Metrics struct {
	Searches         *prometheus.CounterVec
	ResultSize       prometheus.Histogram
	DirectoryLatency prometheus.Histogram
	DirectoryErrors  prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "drivematch_discovery_searches_total",
			Help: "Provider searches by category and whether anything matched",
		}, []string{"category", "matched"}),
		ResultSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "drivematch_discovery_result_size",
			Help:    "Number of candidates returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		DirectoryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "drivematch_discovery_directory_duration_seconds",
			Help:    "Time to read the provider directory",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		DirectoryErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "drivematch_discovery_directory_errors_total",
			Help: "Failed directory reads",
		}),
	}
}

func (m *Metrics) ObserveSearch(category string, results int) {
	if m == nil {
		return
	}
	matched := "false"
	if results > 0 {
		matched = "true"
	}
	m.Searches.WithLabelValues(category, matched).Inc()
	m.ResultSize.Observe(float64(results))
}

func (m *Metrics) ObserveDirectory(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DirectoryLatency.Observe(d.Seconds())
	if err != nil {
		m.DirectoryErrors.Inc()
	}
}
