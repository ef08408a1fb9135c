// Package metrics holds the prometheus instruments of a libscout run and a
// count-based progress reporter.
package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArchivesScanned counts archives whose facts were extracted or loaded.
	ArchivesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libscout_archives_scanned_total",
		Help: "Archives added to the corpus",
	})

	// ArchivesSkipped counts unreadable or unknown archives.
	ArchivesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libscout_archives_skipped_total",
		Help: "Archives skipped by reason",
	}, []string{"reason"})

	Facts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libscout_facts_total",
		Help: "FQN facts added to the corpus",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libscout_cache_hits_total",
		Help: "Archives whose facts came from the fact cache",
	})

	ClustersIdentified = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "libscout_clusters_identified",
		Help: "Clusters produced by identification",
	})

	ClustersAbsorbed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libscout_clusters_absorbed_total",
		Help: "Clusters consumed by merging",
	})

	MergePasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "libscout_merge_passes_total",
		Help: "Fixed-point passes run by the merger",
	})

	// Libraries tracks built libraries by kind (simple, package, phantom).
	Libraries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "libscout_libraries",
		Help: "Libraries in the last built repository by kind",
	}, []string{"kind"})

	Anomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libscout_anomalies_total",
		Help: "Structural inconsistencies skipped by stage",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "libscout_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4min
	}, []string{"stage"})
)

// Anomaly logs a severe, non-fatal inconsistency and counts it.
func Anomaly(logger *slog.Logger, stage, msg string, args ...any) {
	Anomalies.WithLabelValues(stage).Inc()
	logger.Error(msg, append([]any{"stage", stage}, args...)...)
}

// ObserveStage records the duration of a stage started at start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the default registry in the node-exporter textfile
// format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Progress logs a line every n ticks of a long pass.
type Progress struct {
	logger *slog.Logger
	stage  string
	every  int
	total  int
	count  int
	start  time.Time
}

// NewProgress starts a reporter for a pass over total items. total may be 0
// when unknown; every <= 0 disables reporting.
func NewProgress(logger *slog.Logger, stage string, every, total int) *Progress {
	return &Progress{logger: logger, stage: stage, every: every, total: total, start: time.Now()}
}

// Tick advances the counter by one.
func (p *Progress) Tick() {
	p.count++
	if p.every <= 0 || p.count%p.every != 0 {
		return
	}
	args := []any{"stage", p.stage, "done", humanize.Comma(int64(p.count))}
	if p.total > 0 {
		args = append(args, "total", humanize.Comma(int64(p.total)))
	}
	p.logger.Info("progress", args...)
}

// Count returns the number of ticks so far.
func (p *Progress) Count() int { return p.count }

// Done logs the final count and elapsed time.
func (p *Progress) Done() {
	p.logger.Debug("pass finished",
		"stage", p.stage,
		"items", humanize.Comma(int64(p.count)),
		"elapsed", time.Since(p.start).Round(time.Millisecond))
}
