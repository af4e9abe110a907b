package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pr_analysis"

// Run collects counters for a single analysis run on its own registry.
type Run struct {
	registry *prometheus.Registry

	listed              prometheus.Counter
	selected            prometheus.Counter
	extracted           prometheus.Counter
	skipped             prometheus.Counter
	subresourceFailures *prometheus.CounterVec
	duration            prometheus.Gauge
}

// NewRun registers a fresh set of run counters.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		registry:  reg,
		listed:    factory.NewCounter(counterOpts("records_listed_total", "Pull requests pulled from the source")),
		selected:  factory.NewCounter(counterOpts("records_selected_total", "Pull requests that passed state, window and limit filters")),
		extracted: factory.NewCounter(counterOpts("records_extracted_total", "Pull requests turned into metric tuples")),
		skipped:   factory.NewCounter(counterOpts("records_skipped_total", "Pull requests dropped because extraction failed")),
		subresourceFailures: factory.NewCounterVec(
			counterOpts("subresource_failures_total", "Sub-resource fetches that failed and fell back to defaults"),
			[]string{"kind"},
		),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of the last run",
		}),
	}
}

// IncListed counts a record read from the source.
func (r *Run) IncListed() {
	r.listed.Inc()
}

// IncSelected counts a record handed to the extractor.
func (r *Run) IncSelected() {
	r.selected.Inc()
}

// IncExtracted counts a completed metric tuple.
func (r *Run) IncExtracted() {
	r.extracted.Inc()
}

// IncSkipped counts a record whose extraction failed.
func (r *Run) IncSkipped() {
	r.skipped.Inc()
}

// IncSubresourceFailure counts a recovered sub-resource failure.
func (r *Run) IncSubresourceFailure(kind string) {
	r.subresourceFailures.WithLabelValues(kind).Inc()
}

// ObserveDuration records how long the run took.
func (r *Run) ObserveDuration(d time.Duration) {
	r.duration.Set(d.Seconds())
}

// Registry exposes the underlying registry for gathering.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps the run counters in the node_exporter textfile format.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}
}
