package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// LogSink writes job events through slog.
// Retries and failures log at warn, conflicts at error, successes at debug.
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

// Emit implements ports.TelemetrySink.
func (s *LogSink) Emit(ctx context.Context, e domain.JobEvent) {
	attrs := []any{
		"blueprint_id", e.BlueprintID,
		"autosave", e.Autosave,
		"job_attempt", e.Attempt,
		"queue_depth", e.QueueDepth,
		"elapsed", e.Elapsed,
		"version", e.Version,
	}
	switch e.Type {
	case domain.EventJobRetry:
		s.Logger.WarnContext(ctx, "save retry scheduled", append(attrs, "backoff", e.Backoff, "err", e.Err)...)
	case domain.EventJobFailed:
		s.Logger.WarnContext(ctx, "save failed", append(attrs, "err", e.Err)...)
	case domain.EventJobConflict:
		s.Logger.ErrorContext(ctx, "save conflict", append(attrs, "err", e.Err)...)
	default:
		s.Logger.DebugContext(ctx, "save succeeded", attrs...)
	}
}

// PrometheusSink records job events as Prometheus metrics.
type PrometheusSink struct {
	jobs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	backoff    prometheus.Histogram
	queueDepth prometheus.Gauge
}

// NewPrometheusSink creates the sink's collectors and registers them with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blueprint_save_jobs_total",
				Help: "Settled save jobs by outcome and trigger.",
			},
			[]string{"outcome", "trigger"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blueprint_save_job_duration_seconds",
				Help:    "Time from enqueue to settlement of save jobs.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"outcome"},
		),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blueprint_save_retry_backoff_seconds",
			Help:    "Backoff delays scheduled before save retries.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blueprint_save_queue_depth",
			Help: "Queue depth observed at the last job event.",
		}),
	}
	for _, c := range []prometheus.Collector{s.jobs, s.duration, s.backoff, s.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Emit implements ports.TelemetrySink.
func (s *PrometheusSink) Emit(_ context.Context, e domain.JobEvent) {
	trigger := "manual"
	if e.Autosave {
		trigger = "autosave"
	}
	outcome := string(e.Type)
	s.jobs.WithLabelValues(outcome, trigger).Inc()
	s.queueDepth.Set(float64(e.QueueDepth))
	if e.Type == domain.EventJobRetry {
		s.backoff.Observe(e.Backoff.Seconds())
		return
	}
	s.duration.WithLabelValues(outcome).Observe(e.Elapsed.Seconds())
}

// Multi fans every event out to all sinks.
type Multi []ports.TelemetrySink

// Emit implements ports.TelemetrySink.
func (m Multi) Emit(ctx context.Context, e domain.JobEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}
