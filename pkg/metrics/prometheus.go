// Package metrics provides Prometheus metrics for the palco judging service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Lifecycle
	transitions      *prometheus.CounterVec
	eventsCreated    prometheus.Counter
	eventsCopied     prometheus.Counter
	eventsByStatus   *prometheus.GaugeVec
	versionConflicts prometheus.Counter

	// Roster
	registrations *prometheus.CounterVec
	judgesTotal   prometheus.Counter

	// Judging
	evaluationsSubmitted prometheus.Counter
	evaluationsReplaced  prometheus.Counter
	evaluationsRejected  *prometheus.CounterVec

	// Ranking
	rankingComputations prometheus.Counter
	rankingLatency      prometheus.Histogram
	resultsPublished    prometheus.Counter

	// Live board pipeline
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDropped       *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter
	liveBoardUpdates   *prometheus.CounterVec
	liveBoardEntries   prometheus.Gauge
	idempotentReplays  prometheus.Counter
	storeQueryLatency  *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
	errorsByComponent  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "palco",
		subsystem:        "judging",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.transitions = m.counterVec("event_transitions_total", "Event status transitions by action and outcome", "action", "outcome")
	m.eventsCreated = m.counter("events_created_total", "Events created (including copies)")
	m.eventsCopied = m.counter("events_copied_total", "Events created by copying another event")
	m.eventsByStatus = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "events_by_status",
		Help: "Events currently in each status", ConstLabels: m.constLabels,
	}, []string{"status"})
	m.versionConflicts = m.counter("version_conflicts_total", "Optimistic version checks that failed")

	m.registrations = m.counterVec("registrations_total", "Participant registrations by outcome", "outcome")
	m.judgesTotal = m.counter("judges_assigned_total", "Judges assigned to events")

	m.evaluationsSubmitted = m.counter("evaluations_submitted_total", "Evaluations stored (new or replaced)")
	m.evaluationsReplaced = m.counter("evaluations_replaced_total", "Evaluations that replaced an earlier score from the same judge")
	m.evaluationsRejected = m.counterVec("evaluations_rejected_total", "Evaluations rejected before storage", "reason")

	m.rankingComputations = m.counter("ranking_computations_total", "Rankings computed from the evaluation store")
	m.rankingLatency = m.histogram("ranking_latency_milliseconds", "Time to aggregate and rank one event")
	m.resultsPublished = m.counter("results_published_total", "Result publications (including republish)")

	m.queueSize = m.gauge("queue_size", "Pending live board score changes")
	m.queueCapacity = m.gauge("queue_capacity", "Live board queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Score changes enqueued for the live board")
	m.queueDropped = m.counterVec("queue_dropped_total", "Score changes dropped before reaching the live board", "reason")
	m.workerCount = m.gauge("worker_count", "Live board workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time to fold one score change into the live board")
	m.workerErrors = m.counter("worker_errors_total", "Score changes that failed to process")
	m.liveBoardUpdates = m.counterVec("live_board_updates_total", "Live board upserts by outcome", "outcome")
	m.liveBoardEntries = m.gauge("live_board_entries", "Participants tracked on live boards")
	m.idempotentReplays = m.counter("idempotent_replays_total", "Transition requests answered from the idempotency registry")

	m.storeQueryLatency = m.histogramVec("store_latency_milliseconds", "Storage operation latency", "operation")
	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestLatency = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")
	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and kind", "component", "kind")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordTransition counts a transition attempt; outcome is "ok" or an error kind.
func RecordTransition(action, outcome string) {
	globalManager.transitions.WithLabelValues(action, outcome).Inc()
}

// RecordEventCreated counts a new event; copied marks events produced by copy.
func RecordEventCreated(copied bool) {
	globalManager.eventsCreated.Inc()
	if copied {
		globalManager.eventsCopied.Inc()
	}
}

// MoveEventStatus shifts one event between status gauges. Empty from means a new event.
func MoveEventStatus(from, to string) {
	if from != "" {
		globalManager.eventsByStatus.WithLabelValues(from).Dec()
	}
	if to != "" {
		globalManager.eventsByStatus.WithLabelValues(to).Inc()
	}
}

// RecordVersionConflict counts a failed compare-and-set.
func RecordVersionConflict() {
	globalManager.versionConflicts.Inc()
}

// RecordRegistration counts a registration attempt by outcome.
func RecordRegistration(outcome string) {
	globalManager.registrations.WithLabelValues(outcome).Inc()
}

// RecordJudgeAssigned counts a judge assignment.
func RecordJudgeAssigned() {
	globalManager.judgesTotal.Inc()
}

// RecordEvaluation counts a stored evaluation.
func RecordEvaluation(replaced bool) {
	globalManager.evaluationsSubmitted.Inc()
	if replaced {
		globalManager.evaluationsReplaced.Inc()
	}
}

// RecordEvaluationRejected counts an evaluation refused before storage.
func RecordEvaluationRejected(reason string) {
	globalManager.evaluationsRejected.WithLabelValues(reason).Inc()
}

// RecordRanking records one ranking computation.
func RecordRanking(latencyMs float64) {
	globalManager.rankingComputations.Inc()
	globalManager.rankingLatency.Observe(latencyMs)
}

// RecordResultsPublished counts a publication.
func RecordResultsPublished() {
	globalManager.resultsPublished.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted score change.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDrop counts a dropped score change.
func RecordQueueDrop(reason string) {
	globalManager.queueDropped.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerLatency records processing latency for one score change.
func RecordWorkerLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed score change.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordLiveBoardUpdate counts a live board upsert; outcome is applied or stale.
func RecordLiveBoardUpdate(outcome string) {
	globalManager.liveBoardUpdates.WithLabelValues(outcome).Inc()
}

// UpdateLiveBoardEntries sets the number of rows across live boards.
func UpdateLiveBoardEntries(count int) {
	globalManager.liveBoardEntries.Set(float64(count))
}

// RecordIdempotentReplay counts a replayed transition request.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// RecordStoreLatency records latency of a storage operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestLatency.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordError counts an error by component and kind.
func RecordError(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Total sums every sample of a counter or gauge family on the custom registry.
// name is the fully qualified metric name, e.g. palco_judging_results_published_total.
func Total(name string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			}
		}
		return sum, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCollector, name)
}
