// Package publisher emits dispatch run events to NATS.
package publisher

import (
	"context"

	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/logger"
	natsclient "github.com/blockedby/mailmerge/internal/nats"
)

// EventPublisher is the part of the nats client used here, to allow mocking.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements dispatcher.Notifier.
// Publish failures are logged; they never affect a run.
type NATSPublisher struct {
	js  EventPublisher
	log *logger.Logger
}

// NewNATSPublisher creates a new publisher.
func NewNATSPublisher(js EventPublisher, log *logger.Logger) *NATSPublisher {
	return &NATSPublisher{js: js, log: log}
}

// RunProgress publishes a per-row progress event.
func (p *NATSPublisher) RunProgress(ctx context.Context, progress dispatcher.Progress) {
	if err := p.js.Publish(ctx, natsclient.SubjectDispatchProgress, progress); err != nil {
		p.log.Warn().
			Err(err).
			Str("run_id", progress.RunID.String()).
			Msg("publish progress event")
	}
}

// RunFinished publishes the run summary.
func (p *NATSPublisher) RunFinished(ctx context.Context, out *dispatcher.Outcome) {
	if err := p.js.Publish(ctx, natsclient.SubjectDispatchFinished, out.Summary()); err != nil {
		p.log.Warn().
			Err(err).
			Str("run_id", out.RunID.String()).
			Msg("publish finished event")
	}
}
