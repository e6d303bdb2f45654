// Package metrics counts run outcomes with Prometheus collectors. A batch run
// has no scrape endpoint, so the registry is written in text exposition
// format for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run holds the collectors for one run on a private registry.
type Run struct {
	reg *prometheus.Registry

	URLsProcessed    *prometheus.CounterVec
	PermissionDenied *prometheus.CounterVec
	ExtractDuration  *prometheus.HistogramVec
	ArticleChars     prometheus.Histogram
	SummariesFailed  prometheus.Counter
	ArtifactsWritten prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		reg: reg,
		URLsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gosift_urls_processed_total",
			Help: "URLs processed, by outcome",
		}, []string{"outcome"}),
		PermissionDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gosift_permission_denied_total",
			Help: "URLs refused by the permission checker, by reason",
		}, []string{"reason"}),
		ExtractDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gosift_extract_duration_seconds",
			Help:    "Time to parse and extract one page",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"profile"}),
		ArticleChars: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gosift_article_chars",
			Help:    "Length of assembled articles in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		}),
		SummariesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "gosift_summaries_failed_total",
			Help: "Summarizer calls that returned an error",
		}),
		ArtifactsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "gosift_artifacts_written_total",
			Help: "JSON artifacts written to the output directory",
		}),
	}
}

// Outcome counts one finished URL. A nil Run is a no-op so callers need no
// guards when metrics are disabled.
func (r *Run) Outcome(outcome string) {
	if r == nil {
		return
	}
	r.URLsProcessed.WithLabelValues(outcome).Inc()
}

// Denied counts a permission refusal.
func (r *Run) Denied(reason string) {
	if r == nil {
		return
	}
	r.PermissionDenied.WithLabelValues(reason).Inc()
}

// Extracted records extraction time and article length.
func (r *Run) Extracted(profile string, d time.Duration, chars int) {
	if r == nil {
		return
	}
	r.ExtractDuration.WithLabelValues(profile).Observe(d.Seconds())
	r.ArticleChars.Observe(float64(chars))
}

// SummaryFailed counts a failed summarizer call.
func (r *Run) SummaryFailed() {
	if r == nil {
		return
	}
	r.SummariesFailed.Inc()
}

// ArtifactWritten counts a written artifact.
func (r *Run) ArtifactWritten() {
	if r == nil {
		return
	}
	r.ArtifactsWritten.Inc()
}

// Gatherer exposes the registry.
func (r *Run) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes the current values to path atomically.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
