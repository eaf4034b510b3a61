package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
)

// DefaultFlushThreshold is the buffered row count that triggers a flush.
const DefaultFlushThreshold = 50

// BufferStats counts what happened to buffered audit rows. Persisted rows
// reached every sink, Partial rows reached at least one, Dropped rows none.
type BufferStats struct {
	Flushes   int `json:"flushes"`
	Persisted int `json:"persisted"`
	Partial   int `json:"partial"`
	Dropped   int `json:"dropped"`
}

// AuditBuffer batches audit rows in memory and writes them to a sink.
// It is owned by a single run and is not safe for concurrent use.
type AuditBuffer struct {
	sink      AuditSink
	threshold int
	rows      []models.AuditRow
	stats     BufferStats
	log       *logger.Logger
}

// NewAuditBuffer creates a buffer. A threshold <= 0 uses DefaultFlushThreshold;
// a nil sink discards rows on flush.
func NewAuditBuffer(sink AuditSink, threshold int, log *logger.Logger) *AuditBuffer {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logger.Get()
	}
	return &AuditBuffer{
		sink:      sink,
		threshold: threshold,
		rows:      make([]models.AuditRow, 0, threshold),
		log:       log,
	}
}

// Push appends a row.
func (b *AuditBuffer) Push(row models.AuditRow) {
	b.rows = append(b.rows, row)
}

// Len returns the number of pending rows.
func (b *AuditBuffer) Len() int {
	return len(b.rows)
}

// Full reports whether pending rows reached the threshold.
func (b *AuditBuffer) Full() bool {
	return len(b.rows) >= b.threshold
}

// Stats returns flush counters.
func (b *AuditBuffer) Stats() BufferStats {
	return b.stats
}

// FlushIfFull flushes only when the threshold is reached.
func (b *AuditBuffer) FlushIfFull(ctx context.Context) {
	if b.Full() {
		b.Flush(ctx)
	}
}

// Flush hands every pending row to the sink and clears the buffer.
// A failed batch is logged and dropped; the run carries on.
func (b *AuditBuffer) Flush(ctx context.Context) {
	if len(b.rows) == 0 {
		return
	}

	batch := b.rows
	b.rows = make([]models.AuditRow, 0, b.threshold)
	b.stats.Flushes++

	if err := b.sink.Append(ctx, batch); err != nil {
		var partial *PartialWriteError
		if errors.As(err, &partial) {
			b.stats.Partial += len(batch)
			b.log.Warn().
				Err(err).
				Int("rows", len(batch)).
				Int("failed_sinks", partial.Failed).
				Int("sinks", partial.Total).
				Msg("audit rows persisted to some sinks only")
			return
		}
		b.stats.Dropped += len(batch)
		b.log.Warn().
			Err(err).
			Int("rows", len(batch)).
			Msg("could not persist audit rows")
		return
	}

	b.stats.Persisted += len(batch)
	b.log.Debug().Int("rows", len(batch)).Msg("audit rows persisted")
}

// NopSink discards audit rows.
type NopSink struct{}

// Append implements AuditSink.
func (NopSink) Append(context.Context, []models.AuditRow) error { return nil }

// PartialWriteError is returned by MultiSink when some, but not all, sinks
// failed to store a batch.
type PartialWriteError struct {
	Failed int
	Total  int
	Err    error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%d of %d audit sinks failed: %v", e.Failed, e.Total, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// MultiSink writes each batch to every sink in order. When every sink fails
// the errors are joined; when only some fail a *PartialWriteError is returned.
type MultiSink []AuditSink

// Append implements AuditSink.
func (m MultiSink) Append(ctx context.Context, rows []models.AuditRow) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) < len(m) {
		return &PartialWriteError{Failed: len(errs), Total: len(m), Err: errors.Join(errs...)}
	}
	return errors.Join(errs...)
}
