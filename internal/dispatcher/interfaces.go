package dispatcher

import (
	"context"

	"github.com/blockedby/mailmerge/internal/graph"
	"github.com/blockedby/mailmerge/internal/models"
)

// MailSender delivers one message to one recipient.
// This allows mocking in tests.
type MailSender interface {
	Send(ctx context.Context, msg graph.Message) error
}

// AuditSink persists a batch of audit rows in the given order.
type AuditSink interface {
	Append(ctx context.Context, rows []models.AuditRow) error
}

// Notifier receives run progress. Implementations must not block the run.
type Notifier interface {
	RunProgress(ctx context.Context, p Progress)
	RunFinished(ctx context.Context, out *Outcome)
}

// RunRecorder keeps run history for audit views.
type RunRecorder interface {
	StartRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
}
