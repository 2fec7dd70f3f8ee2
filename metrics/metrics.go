// Package metrics exposes Prometheus collectors for integration runs.
//
// A nil *Recorder is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
)

const namespace = "imovelguide"

// Run outcomes used as the outcome label.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeDeferred = "deferred"
	OutcomeReset    = "stuck_reset"
)

// Recorder holds the collectors of one registry.
type Recorder struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
	skips    *prometheus.CounterVec
	images   *prometheus.CounterVec
	running  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Integration runs by provider and outcome",
		}, []string{"provider", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of integration runs that reached the pipeline",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		}, []string{"provider", "outcome"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Feed records by what the run did with them",
		}, []string{"provider", "result"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Skipped feed records by reason",
		}, []string{"provider", "reason"}),
		images: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Image operations by result",
		}, []string{"result"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_progress",
			Help:      "Integration runs executing in this process",
		}),
	}
}

// RunStarted marks a run as executing. Call the returned func when it ends.
func (r *Recorder) RunStarted() func() {
	if r == nil {
		return func() {}
	}
	r.running.Inc()
	return r.running.Dec
}

// ObserveRun counts a run outcome. A zero duration is not observed, since
// deferred runs never reach the pipeline.
func (r *Recorder) ObserveRun(provider, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	r.runs.WithLabelValues(provider, outcome).Inc()
	if d > 0 {
		r.duration.WithLabelValues(provider, outcome).Observe(d.Seconds())
	}
}

// ObserveReport counts the records and images of a finished run.
func (r *Recorder) ObserveReport(rep *report.RunReport) {
	if r == nil || rep == nil {
		return
	}
	provider := rep.Provider
	if provider == "" {
		provider = "unknown"
	}
	for result, n := range map[string]int{
		"inserted":  rep.Inserted,
		"updated":   rep.Updated,
		"unchanged": rep.Unchanged,
		"protected": rep.Protected,
		"removed":   rep.Removed,
		"skipped":   rep.Skipped,
	} {
		if n > 0 {
			r.records.WithLabelValues(provider, result).Add(float64(n))
		}
	}
	for reason, n := range rep.SkipsByReason() {
		r.skips.WithLabelValues(provider, string(reason)).Add(float64(n))
	}
	for result, n := range map[string]int{
		"inserted": rep.ImagesInserted,
		"removed":  rep.ImagesRemoved,
		"failed":   rep.ImageFailures,
	} {
		if n > 0 {
			r.images.WithLabelValues(result).Add(float64(n))
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
