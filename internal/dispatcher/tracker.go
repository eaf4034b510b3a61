package dispatcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
)

// RowState is a row's position in the per-row state machine.
type RowState string

// Row states. Sent and both Failed states are terminal.
const (
	RowPending                RowState = "PENDING"
	RowRendered               RowState = "RENDERED"
	RowSent                   RowState = "SENT"
	RowFailedInvalidRecipient RowState = "FAILED_INVALID_RECIPIENT"
	RowFailedSendError        RowState = "FAILED_SEND_ERROR"
)

var validTransitions = map[RowState][]RowState{
	RowPending:  {RowRendered, RowFailedInvalidRecipient},
	RowRendered: {RowSent, RowFailedSendError},
}

// ValidateTransition checks if a row state transition is allowed.
func ValidateTransition(from, to RowState) bool {
	for _, valid := range validTransitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}

// Status maps a terminal row state to the recorded delivery status.
func (s RowState) Status() models.DeliveryStatus {
	if s == RowSent {
		return models.DeliveryStatusSent
	}
	return models.DeliveryStatusFailed
}

// Progress is reported after every processed row.
type Progress struct {
	RunID     uuid.UUID     `json:"run_id"`
	Processed int           `json:"processed"`
	Requested int           `json:"requested"`
	Percent   float64       `json:"percent"`
	Last      models.Result `json:"last"`
}

// ProgressFunc is the caller's per-row callback.
type ProgressFunc func(Progress)

// Percent returns processed/requested*100 clamped to [0, 100].
func Percent(processed, requested int) float64 {
	if requested <= 0 {
		return 0
	}
	pct := float64(processed) / float64(requested) * 100
	return max(0, min(100, pct))
}

// tracker owns the processed counter of one run and fans progress out.
type tracker struct {
	runID      uuid.UUID
	requested  int
	processed  int
	onProgress ProgressFunc
	notifiers  []Notifier
	log        *logger.Logger
}

// transition logs a row state change; invalid transitions are reported, never applied silently.
func (t *tracker) transition(index int, from, to RowState) RowState {
	if !ValidateTransition(from, to) {
		t.log.Error().
			Int("row", index).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("invalid row transition")
		return from
	}

	t.log.Debug().
		Int("row", index).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("row state changed")
	return to
}

// rowDone advances the counter and notifies listeners.
func (t *tracker) rowDone(ctx context.Context, res models.Result) {
	t.processed++

	p := Progress{
		RunID:     t.runID,
		Processed: t.processed,
		Requested: t.requested,
		Percent:   Percent(t.processed, t.requested),
		Last:      res,
	}

	if t.onProgress != nil {
		t.onProgress(p)
	}
	for _, n := range t.notifiers {
		n.RunProgress(ctx, p)
	}
}

func (t *tracker) finished(ctx context.Context, out *Outcome) {
	for _, n := range t.notifiers {
		n.RunFinished(ctx, out)
	}
}
