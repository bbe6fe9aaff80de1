package observability

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	NodeVisits  *prometheus.CounterVec
	Answers     *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Findings    *prometheus.CounterVec
	Trail       prometheus.Histogram
}

// New creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_node_visits_total",
				Help: "Total number of node visits",
			},
			[]string{"node_id", "kind"},
		),
		Answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_answers_total",
				Help: "Answers accepted by the engine, by answer kind",
			},
			[]string{"kind"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_status_transitions_total",
				Help: "Execution status transitions",
			},
			[]string{"from", "to"},
		),
		Findings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triage_validation_findings_total",
				Help: "Findings reported by workflow validation",
			},
			[]string{"severity", "code"},
		),
		Trail: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "triage_session_trail_length",
				Help:    "Number of answers recorded by sessions that reached a terminal status",
				Buckets: prometheus.LinearBuckets(1, 2, 10),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.Answers, m.Transitions, m.Findings, m.Trail)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.NodeID, string(e.Kind)).Inc()
		},
		OnAnswer: func(_ context.Context, e *domain.AnswerEvent) {
			m.Answers.WithLabelValues(string(e.Answer.Kind)).Inc()
		},
		OnStatusChange: func(_ context.Context, e *domain.StatusEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
	}
}

// ObserveReport counts the findings of a validation pass.
func (m *Metrics) ObserveReport(r *validator.Report) {
	for _, f := range r.Findings {
		m.Findings.WithLabelValues(string(f.Severity), string(f.Code)).Inc()
	}
}

// ObserveSession records the trail length of a session that has finished.
func (m *Metrics) ObserveSession(s *domain.Session) {
	if s == nil || s.State == nil || !s.State.Status.Terminal() {
		return
	}
	m.Trail.Observe(float64(len(s.State.Trail)))
}
