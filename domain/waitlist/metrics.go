package waitlist

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OutcomeRecorder counts submissions by outcome.
type OutcomeRecorder interface {
	Record(outcome Outcome)
}

type submissionMetrics struct {
	submissions *prometheus.CounterVec
}

// NewSubmissionMetrics registers waitlist_submissions_total on reg.
func NewSubmissionMetrics(reg prometheus.Registerer) OutcomeRecorder {
	m := &submissionMetrics{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_submissions_total",
				Help: "Waitlist submissions by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.submissions)
	}
	return m
}

func (m *submissionMetrics) Record(outcome Outcome) {
	m.submissions.WithLabelValues(string(outcome)).Inc()
}

type noopRecorder struct{}

func (noopRecorder) Record(Outcome) {}
