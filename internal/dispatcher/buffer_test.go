package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
)

// mockSink records every batch it receives.
type mockSink struct {
	batches [][]models.AuditRow
	err     error
}

func (m *mockSink) Append(_ context.Context, rows []models.AuditRow) error {
	cp := make([]models.AuditRow, len(rows))
	copy(cp, rows)
	m.batches = append(m.batches, cp)
	return m.err
}

func (m *mockSink) total() int {
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func auditRow(i int) models.AuditRow {
	return models.AuditRow{Recipient: fmt.Sprintf("r%d@x.com", i), Message: ReasonSent}
}

func TestAuditBuffer_FlushAtThreshold(t *testing.T) {
	sink := &mockSink{}
	buf := NewAuditBuffer(sink, 0, logger.Nop())

	for i := 0; i < 49; i++ {
		buf.Push(auditRow(i))
		buf.FlushIfFull(context.Background())
	}
	assert.Empty(t, sink.batches, "no flush below threshold")

	buf.Push(auditRow(49))
	buf.FlushIfFull(context.Background())

	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 50)
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, "r0@x.com", sink.batches[0][0].Recipient)
	assert.Equal(t, "r49@x.com", sink.batches[0][49].Recipient)
}

func TestAuditBuffer_FinalFlushBelowThreshold(t *testing.T) {
	sink := &mockSink{}
	buf := NewAuditBuffer(sink, 50, logger.Nop())

	for i := 0; i < 3; i++ {
		buf.Push(auditRow(i))
	}
	buf.Flush(context.Background())

	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	assert.Equal(t, BufferStats{Flushes: 1, Persisted: 3}, buf.Stats())
}

func TestAuditBuffer_EmptyFlushIsNoop(t *testing.T) {
	sink := &mockSink{}
	buf := NewAuditBuffer(sink, 5, logger.Nop())

	buf.Flush(context.Background())
	assert.Empty(t, sink.batches)
	assert.Equal(t, BufferStats{}, buf.Stats())
}

func TestAuditBuffer_FailureIsSwallowed(t *testing.T) {
	sink := &mockSink{err: errors.New("workbook locked")}
	buf := NewAuditBuffer(sink, 2, logger.Nop())

	buf.Push(auditRow(0))
	buf.Push(auditRow(1))
	buf.FlushIfFull(context.Background())

	// the failed batch is not re-queued
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, BufferStats{Flushes: 1, Dropped: 2}, buf.Stats())

	sink.err = nil
	buf.Push(auditRow(2))
	buf.Flush(context.Background())

	require.Len(t, sink.batches, 2)
	assert.Equal(t, "r2@x.com", sink.batches[1][0].Recipient)
}

func TestMultiSink(t *testing.T) {
	ok := &mockSink{}
	bad := &mockSink{err: errors.New("down")}

	err := MultiSink{bad, ok}.Append(context.Background(), []models.AuditRow{auditRow(0)})
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 1, ok.total(), "later sinks still receive the batch")

	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Failed)
	assert.Equal(t, 2, partial.Total)
}

func TestMultiSink_AllFail(t *testing.T) {
	sinks := MultiSink{&mockSink{err: errors.New("locked")}, &mockSink{err: errors.New("down")}}

	err := sinks.Append(context.Background(), []models.AuditRow{auditRow(0)})
	require.Error(t, err)

	var partial *PartialWriteError
	assert.False(t, errors.As(err, &partial))
}

func TestAuditBuffer_PartialSinkFailureIsNotDropped(t *testing.T) {
	mirror := &mockSink{}
	workbook := &mockSink{err: errors.New("workbook locked")}
	buf := NewAuditBuffer(MultiSink{workbook, mirror}, 3, logger.Nop())

	for i := 0; i < 3; i++ {
		buf.Push(auditRow(i))
	}
	buf.FlushIfFull(context.Background())

	assert.Equal(t, BufferStats{Flushes: 1, Partial: 3}, buf.Stats())
	assert.Equal(t, 3, mirror.total())

	workbook.err = nil
	mirror.err = errors.New("db down")
	buf.Push(auditRow(3))
	buf.Flush(context.Background())
	assert.Equal(t, BufferStats{Flushes: 2, Partial: 4}, buf.Stats())

	workbook.err = errors.New("workbook locked")
	buf.Push(auditRow(4))
	buf.Flush(context.Background())
	assert.Equal(t, BufferStats{Flushes: 3, Partial: 4, Dropped: 1}, buf.Stats())
}

func TestNewAuditBuffer_NilSink(t *testing.T) {
	buf := NewAuditBuffer(nil, 1, nil)
	buf.Push(auditRow(0))
	buf.Flush(context.Background())
	assert.Equal(t, 1, buf.Stats().Persisted)
}
