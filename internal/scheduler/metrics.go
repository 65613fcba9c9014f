package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for both engines. A nil *Metrics is
// valid and records nothing, which keeps engine tests free of registry
// collisions.
type Metrics struct {
	LessonsUnlockedTotal  prometheus.Counter
	UnlockCandidates      prometheus.Gauge
	TickDuration          *prometheus.HistogramVec
	RemindersSentTotal    *prometheus.CounterVec
	ReminderFailuresTotal prometheus.Counter
	ReminderSkippedTotal  *prometheus.CounterVec
	ConfigErrorsTotal     prometheus.Counter
}

// NewMetrics creates and registers scheduler metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		LessonsUnlockedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lessons_unlocked_total",
			Help:      "Total number of lesson instances unlocked.",
		}),

		UnlockCandidates: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unlock_candidates",
			Help:      "Candidates selected by the last unlock tick.",
		}),

		TickDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of engine ticks.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60},
		}, []string{"engine"}),

		RemindersSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total reminders sent by phase and channel.",
		}, []string{"phase", "channel"}),

		ReminderFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_failures_total",
			Help:      "Total reminder deliveries that failed.",
		}),

		ReminderSkippedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_skipped_total",
			Help:      "Reminder candidates skipped, by reason.",
		}, []string{"reason"}),

		ConfigErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_errors_total",
			Help:      "Users skipped due to invalid timezone configuration.",
		}),
	}
}

func (m *Metrics) incUnlocked(n int) {
	if m != nil {
		m.LessonsUnlockedTotal.Add(float64(n))
	}
}

func (m *Metrics) setUnlockCandidates(n int) {
	if m != nil {
		m.UnlockCandidates.Set(float64(n))
	}
}

func (m *Metrics) observeTick(engine string, seconds float64) {
	if m != nil {
		m.TickDuration.WithLabelValues(engine).Observe(seconds)
	}
}

func (m *Metrics) incSent(phase, channel string) {
	if m != nil {
		m.RemindersSentTotal.WithLabelValues(phase, channel).Inc()
	}
}

func (m *Metrics) incFailure() {
	if m != nil {
		m.ReminderFailuresTotal.Inc()
	}
}

func (m *Metrics) incSkipped(reason string) {
	if m != nil {
		m.ReminderSkippedTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) incConfigError() {
	if m != nil {
		m.ConfigErrorsTotal.Inc()
	}
}
