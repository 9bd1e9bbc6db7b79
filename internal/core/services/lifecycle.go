package services

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/logger"
)

// Lifecycle tracks a query through its states. Every transition is a span
// event and a debug log line; illegal transitions are rejected.
type Lifecycle struct {
	span    trace.Span
	state   domain.QueryState
	history []domain.QueryState
}

// NewLifecycle starts a lifecycle in RECEIVED. span may be a no-op span.
func NewLifecycle(span trace.Span) *Lifecycle {
	l := &Lifecycle{
		span:    span,
		state:   domain.QueryReceived,
		history: []domain.QueryState{domain.QueryReceived},
	}
	l.event(domain.QueryReceived)
	return l
}

// Advance moves to next, or returns an *domain.IllegalTransitionError.
func (l *Lifecycle) Advance(next domain.QueryState) error {
	if !l.state.CanTransition(next) {
		err := &domain.IllegalTransitionError{From: l.state, To: next}
		logger.Error("query lifecycle: %v", err)
		return err
	}
	logger.Debug("query %s -> %s", l.state, next)
	l.state = next
	l.history = append(l.history, next)
	l.event(next)
	return nil
}

// State returns the current state.
func (l *Lifecycle) State() domain.QueryState {
	return l.state
}

// History returns every state visited, in order.
func (l *Lifecycle) History() []domain.QueryState {
	out := make([]domain.QueryState, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Lifecycle) event(s domain.QueryState) {
	if l.span == nil {
		return
	}
	l.span.AddEvent("query."+strings.ToLower(s.String()),
		trace.WithAttributes(attribute.String("verity.query.state", s.String())))
}
