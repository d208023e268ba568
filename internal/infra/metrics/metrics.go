package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Итоги экзамена
const (
	OutcomePassed      = "passed"
	OutcomeFailed      = "failed"
	OutcomeUnavailable = "evaluator_unavailable"
	OutcomeExpired     = "expired"
)

// Статусы действий модерации
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	examsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_exams_started_total",
			Help: "Total number of started entrance exams",
		},
	)

	examsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_exams_completed_total",
			Help: "Total number of finished entrance exams",
		},
		[]string{"outcome"},
	)

	evaluatorVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_evaluator_verdicts_total",
			Help: "Verdicts returned by the open-ended answer evaluator",
		},
		[]string{"verdict"},
	)

	evaluatorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_evaluator_duration_seconds",
			Help:    "Time spent waiting for the open-ended answer evaluator",
			Buckets: prometheus.DefBuckets,
		},
	)

	moderationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_moderation_actions_total",
			Help: "Approve, deny and ban procedures by status",
		},
		[]string{"action", "status"},
	)

	expiredSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_deadline_sweeps_total",
			Help: "Sessions claimed by the deadline sweeper",
		},
	)
)

func ExamStarted() {
	examsStarted.Inc()
}

func ExamCompleted(outcome string) {
	examsCompleted.WithLabelValues(outcome).Inc()
}

func EvaluatorVerdict(verdict string) {
	evaluatorVerdicts.WithLabelValues(verdict).Inc()
}

func ObserveEvaluation(d time.Duration) {
	evaluatorDuration.Observe(d.Seconds())
}

func ModerationAction(action, status string) {
	moderationActions.WithLabelValues(action, status).Inc()
}

func DeadlineClaimed(n int) {
	expiredSweeps.Add(float64(n))
}

// Handler отдает метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}
