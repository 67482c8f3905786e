package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the advisor service.
// Every method is safe on a nil receiver so components can run without metrics.
type Metrics struct {
	// Chat metrics
	ChatTurns       *prometheus.CounterVec
	ChatDuration    *prometheus.HistogramVec
	LLMTokens       *prometheus.CounterVec
	InsightOutcomes *prometheus.CounterVec
	InsightsFound   prometheus.Counter

	// Assessment metrics
	Submissions *prometheus.CounterVec

	// Worker metrics
	TasksProcessed *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			ChatTurns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "advisor_chat_turns_total",
					Help: "Chat turns by variant and outcome",
				},
				[]string{"variant", "outcome"},
			),
			ChatDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "advisor_chat_stream_duration_seconds",
					Help:    "Time from request to terminal event",
					Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to 64s
				},
				[]string{"variant"},
			),
			LLMTokens: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "advisor_llm_tokens_total",
					Help: "Tokens consumed by LLM calls",
				},
				[]string{"model", "stage", "direction"},
			),
			InsightOutcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "advisor_insight_extractions_total",
					Help: "Insight extraction runs by resulting status",
				},
				[]string{"status"},
			),
			InsightsFound: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "advisor_insights_found_total",
					Help: "Insights surfaced above the confidence threshold",
				},
			),
			Submissions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "advisor_assessment_submissions_total",
					Help: "Assessment submissions by outcome",
				},
				[]string{"outcome"},
			),
			TasksProcessed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "advisor_worker_tasks_total",
					Help: "Queue tasks processed by the worker",
				},
				[]string{"task_type", "result"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "advisor_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "advisor_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})
	return sharedMetrics
}

// RecordChatTurn records a finished chat stream. outcome is "done" or "error".
func (m *Metrics) RecordChatTurn(variant, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(variant, outcome).Inc()
	m.ChatDuration.WithLabelValues(variant).Observe(seconds)
}

// RecordTokens records prompt and completion tokens for one LLM call.
func (m *Metrics) RecordTokens(model, stage string, prompt, completion int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.LLMTokens.WithLabelValues(model, stage, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.LLMTokens.WithLabelValues(model, stage, "completion").Add(float64(completion))
	}
}

// RecordInsightExtraction records the status of one extraction and how many insights it surfaced.
func (m *Metrics) RecordInsightExtraction(status string, found int) {
	if m == nil {
		return
	}
	m.InsightOutcomes.WithLabelValues(status).Inc()
	if found > 0 {
		m.InsightsFound.Add(float64(found))
	}
}

func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTask(taskType, result string) {
	if m == nil {
		return
	}
	m.TasksProcessed.WithLabelValues(taskType, result).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}
