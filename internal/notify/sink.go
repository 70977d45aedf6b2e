// Package notify defines the notification events the orchestrator emits when
// a student's risk tier rises, and the sinks that receive them. Delivering a
// notification to a counselor (email, in-app) is a collaborator's concern;
// this package only records and fans out the event.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"edurisk-engine/internal/ml"
)

// Event records one risk-tier increase for a student. Events are immutable
// once created.
type Event struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	PriorTier   ml.Tier   `json:"prior_tier"`
	NewTier     ml.Tier   `json:"new_tier"`
	Reason      string    `json:"reason"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// Sink receives emitted notification events.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes events to the structured log. It is always safe to use and
// is the default sink when no delivery collaborator is wired.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, ev Event) error {
	log.Info().
		Str("event_id", ev.ID).
		Str("student_id", ev.StudentID).
		Str("prior_tier", string(ev.PriorTier)).
		Str("new_tier", string(ev.NewTier)).
		Str("reason", ev.Reason).
		Msg("risk notification emitted")
	return nil
}

// MultiSink fans one event out to several sinks. The first error is returned
// after all sinks have been attempted, so a failing sink cannot starve the
// others.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
