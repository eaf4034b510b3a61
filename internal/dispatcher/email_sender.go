package dispatcher

import (
	"context"
	"sync"

	"github.com/blockedby/mailmerge/internal/graph"
	"github.com/blockedby/mailmerge/internal/logger"
)

// DryRunSender logs messages instead of sending them.
// Used by the CLI --dry-run flag and for local runs without Graph credentials.
type DryRunSender struct {
	log *logger.Logger

	mu   sync.Mutex
	sent []graph.Message
}

// NewDryRunSender creates a sender that only logs.
func NewDryRunSender(log *logger.Logger) *DryRunSender {
	if log == nil {
		log = logger.Get()
	}
	return &DryRunSender{log: log}
}

// Send records the message and always succeeds.
func (s *DryRunSender) Send(_ context.Context, msg graph.Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_len", len(msg.HTML)).
		Msg("dry run: message not sent")
	return nil
}

// Sent returns the messages seen so far.
func (s *DryRunSender) Sent() []graph.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]graph.Message, len(s.sent))
	copy(out, s.sent)
	return out
}
