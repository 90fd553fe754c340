package observability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector holds the Prometheus metrics of one process in its own registry.
type Collector struct {
	registry *prometheus.Registry

	mu      sync.Mutex
	flushed map[string]float64

	// Handler metrics
	HandlerInvocations *prometheus.CounterVec
	HandlerDuration    *prometheus.HistogramVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Business metrics
	MessagesReceived prometheus.Counter
	MessagesByStatus *prometheus.CounterVec
	TasksCreated     prometheus.Counter
	TaskFailures     prometheus.Counter
	RemindersSent    prometheus.Counter
}

// NewCollector creates and registers the metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		flushed:  make(map[string]float64),
		HandlerInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_invocations_total",
			Help:      "Handler invocations by event kind and outcome",
		}, []string{"kind", "outcome"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Store operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages accepted by the webhook",
		}),
		MessagesByStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_finished_total",
			Help:      "Messages that left processing, by final status",
		}, []string{"status"}),
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Tasks created from batch input",
		}),
		TaskFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_create_failures_total",
			Help:      "Batch task inputs that were skipped",
		}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Reminders marked as sent",
		}),
	}

	c.registry.MustRegister(
		c.HandlerInvocations,
		c.HandlerDuration,
		c.StoreOperations,
		c.StoreDuration,
		c.MessagesReceived,
		c.MessagesByStatus,
		c.TasksCreated,
		c.TaskFailures,
		c.RemindersSent,
	)
	return c
}

// Flush gathers the registry and returns every sample that changed since the
// previous Flush, keyed as name{label="value",...}. Histograms contribute
// their _count and _sum series. Lambda has no scrape endpoint, so the deltas
// are shipped through the structured log stream instead.
func (c *Collector) Flush() map[string]float64 {
	if c == nil {
		return nil
	}
	families, err := c.registry.Gather()
	if err != nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deltas := make(map[string]float64)
	record := func(key string, value float64) {
		if d := value - c.flushed[key]; d != 0 {
			deltas[key] = d
			c.flushed[key] = value
		}
	}
	for _, family := range families {
		name := family.GetName()
		for _, m := range family.GetMetric() {
			labels := labelString(m.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				record(name+labels, m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				record(name+labels, m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				record(name+"_count"+labels, float64(m.GetHistogram().GetSampleCount()))
				record(name+"_sum"+labels, m.GetHistogram().GetSampleSum())
			}
		}
	}
	return deltas
}

func labelString(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"=\""+p.GetValue()+"\"")
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

// RecordHandler records one handler invocation.
func (c *Collector) RecordHandler(kind Kind, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HandlerInvocations.WithLabelValues(string(kind), outcome(err)).Inc()
	c.HandlerDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// RecordStore records one store operation.
func (c *Collector) RecordStore(operation string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.StoreOperations.WithLabelValues(operation, outcome(err)).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// CountMessageReceived records one accepted message.
func (c *Collector) CountMessageReceived() {
	if c != nil {
		c.MessagesReceived.Inc()
	}
}

// CountMessageFinished records a message leaving processing with status.
func (c *Collector) CountMessageFinished(status string) {
	if c != nil {
		c.MessagesByStatus.WithLabelValues(status).Inc()
	}
}

// CountTaskBatch records the outcome of one batch task creation.
func (c *Collector) CountTaskBatch(created, failed int) {
	if c != nil {
		c.TasksCreated.Add(float64(created))
		c.TaskFailures.Add(float64(failed))
	}
}

// CountReminderSent records one delivered reminder.
func (c *Collector) CountReminderSent() {
	if c != nil {
		c.RemindersSent.Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ============================================================================
// STORE HOOKS
// ============================================================================

type storeStartKey struct{}

// StoreHooks times repository operations into a Collector and logs each one
// at debug level with the correlation id. It satisfies the repository Hooks
// interface.
type StoreHooks struct {
	collector *Collector
	logger    *zap.Logger
}

// NewStoreHooks creates hooks reporting to collector and logger.
func NewStoreHooks(collector *Collector, logger *zap.Logger) *StoreHooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreHooks{collector: collector, logger: logger}
}

func (h *StoreHooks) BeforeOperation(ctx context.Context, _ string) context.Context {
	return context.WithValue(ctx, storeStartKey{}, time.Now())
}

func (h *StoreHooks) AfterOperation(ctx context.Context, operation string, err error) {
	start, ok := ctx.Value(storeStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	h.collector.RecordStore(operation, err, elapsed)

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Duration("duration", elapsed),
	}
	if id := CorrelationID(ctx); id != "" {
		fields = append(fields, zap.String(FieldCorrelationID, id))
	}
	if err != nil {
		h.logger.Debug("Store operation failed", append(fields, zap.Error(err))...)
		return
	}
	h.logger.Debug("Store operation completed", fields...)
}
