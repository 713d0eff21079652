package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_pipeline_runs_total",
			Help: "Total number of pipeline runs by terminal state",
		},
		[]string{"state"}, // state: completed|failed
	)

	StageExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success|partial|error
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage"},
	)

	ContextBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "advisor_stage_context_bytes",
			Help: "Size of the accumulated context handed to a stage",
		},
		[]string{"stage"},
	)

	ReportHeadingsMissing = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_report_headings_missing_total",
			Help: "Mandated report headings absent from a completed report",
		},
	)

	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_agent_calls_total",
			Help: "Total number of model calls made by agents",
		},
		[]string{"agent", "model", "status"}, // status: success|error
	)

	AgentTurns = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_agent_turns",
			Help:    "Turns used per agent invocation",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 100},
		},
		[]string{"agent"},
	)

	AgentCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_agent_cost_usd",
			Help: "Total AI cost in USD",
		},
		[]string{"agent", "model"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_agent_tokens_total",
			Help: "Total tokens used by agents",
		},
		[]string{"agent", "model", "type"}, // type: input|output
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: ok or error kind
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	ToolRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_tool_retries_total",
			Help: "Tool calls repeated after a transient failure",
		},
		[]string{"tool"},
	)

	ToolCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_tool_cache_total",
			Help: "Tool cache lookups",
		},
		[]string{"tool", "result"}, // result: hit|miss
	)

	// Event sink metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_kafka_messages_total",
			Help: "Total number of Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			PipelineRuns,
			StageExecutions,
			StageDuration,
			ContextBytes,
			ReportHeadingsMissing,
			AgentCalls,
			AgentTurns,
			AgentCost,
			AgentTokens,
			ToolExecutions,
			ToolLatency,
			ToolRetries,
			ToolCacheHits,
			KafkaMessages,
		)
	})
}

// Handler exposes the default registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStage records one stage execution.
func RecordStage(stage, status string, duration time.Duration) {
	StageExecutions.WithLabelValues(stage, status).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAgentCall records one model call.
func RecordAgentCall(agent, model string, inputTokens, outputTokens int, cost float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AgentCalls.WithLabelValues(agent, model, status).Inc()
	if err != nil {
		return
	}
	AgentTokens.WithLabelValues(agent, model, "input").Add(float64(inputTokens))
	AgentTokens.WithLabelValues(agent, model, "output").Add(float64(outputTokens))
	AgentCost.WithLabelValues(agent, model).Add(cost)
}

// RecordTool records one tool execution.
func RecordTool(tool, status string, duration time.Duration) {
	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(duration.Seconds())
}
