// Package prometheus exports scheduler metrics through client_golang.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-task-scheduler/core"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "taskscheduler"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	Namespace       string
	DurationBuckets []float64
}

// MetricsExporter implements core.Metrics with Prometheus collectors.
// Every series is labelled with the scheduler (pool) name.
type MetricsExporter struct {
	taskDuration  *prom.HistogramVec
	taskPanics    *prom.CounterVec
	taskRejected  *prom.CounterVec
	queuedSeqs    *prom.GaugeVec
	panicsByValue *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates the collectors and registers them with reg.
// Registering twice against the same registry reuses the existing collectors.
func NewMetricsExporter(reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	namespace := normalizeLabel(opts.Namespace, DefaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	m := &MetricsExporter{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time in seconds, by pool and priority.",
			Buckets:   buckets,
		}, []string{"pool", "priority"}),
		taskPanics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_panics_total",
			Help:      "Tasks that panicked.",
		}, []string{"pool"}),
		taskRejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_rejected_total",
			Help:      "Tasks rejected at post time or skipped at run time.",
		}, []string{"pool", "reason"}),
		queuedSeqs: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "priority_queue_sequences",
			Help:      "Sequences waiting in the priority queue after the last push.",
		}, []string{"pool"}),
		panicsByValue: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_panic_kinds_total",
			Help:      "Task panics by the Go type of the recovered value.",
		}, []string{"pool", "kind"}),
	}

	var err error
	if m.taskDuration, err = registerCollector(reg, m.taskDuration); err != nil {
		return nil, err
	}
	if m.taskPanics, err = registerCollector(reg, m.taskPanics); err != nil {
		return nil, err
	}
	if m.taskRejected, err = registerCollector(reg, m.taskRejected); err != nil {
		return nil, err
	}
	if m.queuedSeqs, err = registerCollector(reg, m.queuedSeqs); err != nil {
		return nil, err
	}
	if m.panicsByValue, err = registerCollector(reg, m.panicsByValue); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MetricsExporter) RecordTaskDuration(poolName string, priority core.TaskPriority, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(normalizeLabel(poolName, "unknown"), priority.String()).Observe(duration.Seconds())
}

func (m *MetricsExporter) RecordTaskPanic(poolName string, panicInfo any) {
	if m == nil {
		return
	}
	pool := normalizeLabel(poolName, "unknown")
	m.taskPanics.WithLabelValues(pool).Inc()
	m.panicsByValue.WithLabelValues(pool, panicKind(panicInfo)).Inc()
}

func (m *MetricsExporter) RecordQueueDepth(poolName string, depth int) {
	if m == nil {
		return
	}
	m.queuedSeqs.WithLabelValues(normalizeLabel(poolName, "unknown")).Set(float64(depth))
}

func (m *MetricsExporter) RecordTaskRejected(poolName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejected.WithLabelValues(normalizeLabel(poolName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// panicKind keeps the label set small: errors, strings, and everything else.
func panicKind(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case error:
		return "error"
	case string:
		return "string"
	default:
		return "other"
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, fmt.Errorf("register collector: %w", err)
}
