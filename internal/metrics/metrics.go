package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	sgerrors "github.com/felixgeelhaar/stressguard/internal/errors"
)

// Metrics holds all Prometheus metrics for StressGuard
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec

	// Conversation routing metrics
	RouterDecisions *prometheus.CounterVec
	ChatTurns       *prometheus.CounterVec

	// Chat generator metrics
	GeneratorCalls   *prometheus.CounterVec
	GeneratorLatency *prometheus.HistogramVec
	GeneratorErrors  *prometheus.CounterVec

	// Questionnaire metrics
	QuestionnaireStarts      *prometheus.CounterVec
	QuestionnaireCompletions *prometheus.CounterVec
	QuestionnaireScore       *prometheus.HistogramVec
	AnswerInterpretations    *prometheus.CounterVec

	// Physiological alert metrics
	AlertsReceived *prometheus.CounterVec
	AlertsSent     *prometheus.CounterVec

	// Live chat sessions over the websocket
	ActiveSessions prometheus.Gauge

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stressguard_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		RouterDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_router_decisions_total",
				Help: "Responses produced by the conversation router by kind",
			},
			[]string{"kind"},
		),
		ChatTurns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_chat_turns_total",
				Help: "Free conversation turns by prompt mode",
			},
			[]string{"mode"},
		),

		GeneratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_generator_calls_total",
				Help: "Total number of chat generator calls",
			},
			[]string{"provider", "success"},
		),
		GeneratorLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stressguard_generator_latency_seconds",
				Help:    "Chat generator latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider"},
		),
		GeneratorErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_generator_errors_total",
				Help: "Total number of chat generator errors",
			},
			[]string{"provider", "error_code"},
		),

		QuestionnaireStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_questionnaire_starts_total",
				Help: "Questionnaires started",
			},
			[]string{"questionnaire"},
		),
		QuestionnaireCompletions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_questionnaire_completions_total",
				Help: "Questionnaires completed by resulting level",
			},
			[]string{"questionnaire", "level"},
		),
		QuestionnaireScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stressguard_questionnaire_score_ratio",
				Help:    "Completed questionnaire score as a fraction of the maximum",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"questionnaire"},
		),
		AnswerInterpretations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_answer_interpretations_total",
				Help: "Free-text answers by interpretation outcome",
			},
			[]string{"outcome"},
		),

		AlertsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_alerts_received_total",
				Help: "Physiological alerts received by EDA zone",
			},
			[]string{"zone"},
		),
		AlertsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_alerts_sent_total",
				Help: "Simulated alerts sent to the receiver",
			},
			[]string{"success"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stressguard_active_sessions",
				Help: "Chat sessions currently connected",
			},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stressguard_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// ObserveCommand records one CLI command run
func (m *Metrics) ObserveCommand(command string, d time.Duration, err error) {
	m.CommandExecutions.WithLabelValues(command, boolLabel(err == nil)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
	if err != nil {
		m.RecordError(err, "cli")
	}
}

// ObserveGeneration records one chat generator call
func (m *Metrics) ObserveGeneration(provider string, d time.Duration, err error) {
	m.GeneratorCalls.WithLabelValues(provider, boolLabel(err == nil)).Inc()
	m.GeneratorLatency.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.GeneratorErrors.WithLabelValues(provider, errorCode(err)).Inc()
	}
}

// ObserveCompletion records a finished questionnaire
func (m *Metrics) ObserveCompletion(questionnaire, level string, total, max int) {
	m.QuestionnaireCompletions.WithLabelValues(questionnaire, level).Inc()
	if max > 0 {
		m.QuestionnaireScore.WithLabelValues(questionnaire).Observe(float64(total) / float64(max))
	}
}

// ObserveAlertSent records one alert delivery attempt to the receiver
func (m *Metrics) ObserveAlertSent(err error) {
	m.AlertsSent.WithLabelValues(boolLabel(err == nil)).Inc()
	if err != nil {
		m.RecordError(err, "sensor")
	}
}

// RecordError counts err under its structured code
func (m *Metrics) RecordError(err error, component string) {
	if err == nil {
		return
	}
	m.Errors.WithLabelValues(errorCode(err), component).Inc()
}

func errorCode(err error) string {
	if code := sgerrors.CodeOf(err); code != "" {
		return string(code)
	}
	return "UNKNOWN"
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
