package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/account-auth-service/internal/core/port"
)

// Outcome labels for auth events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

var _ port.AuthEventRecorder = (*AuthMetrics)(nil)

// AuthMetrics counts account lifecycle events by name and outcome.
type AuthMetrics struct {
	events *prometheus.CounterVec
}

// NewAuthMetrics registers the auth event counter with reg. A nil reg uses the default registerer.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "events_total",
		Help:      "Account and session events partitioned by event name and outcome.",
	}, []string{"event", "outcome"})

	if err := reg.Register(events); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register auth events collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing auth events collector has unexpected type %T", already.ExistingCollector)
		}
		events = existing
	}

	return &AuthMetrics{events: events}, nil
}

// Record increments the counter for event and outcome.
func (m *AuthMetrics) Record(event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

// Events exposes the underlying collector.
func (m *AuthMetrics) Events() *prometheus.CounterVec {
	return m.events
}
