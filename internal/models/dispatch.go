package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the outcome of a single dispatched row.
type DeliveryStatus string

// DeliveryStatus constants define the terminal states of a dispatched row.
// An invalid recipient is recorded as FAILED; there is no separate skipped state.
const (
	DeliveryStatusSent   DeliveryStatus = "SENT"
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

// Row is one dataset entry keyed by column name.
// Values are scalars as decoded from the uploaded sheet (string, number, bool or nil).
type Row map[string]any

// String returns the value of column col as text.
// Missing columns and nil values yield an empty string.
func (r Row) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Recipient returns the trimmed address stored in col.
func (r Row) Recipient(col string) string {
	return strings.TrimSpace(r.String(col))
}

// ColumnMapping maps a template variable key to a dataset column name.
type ColumnMapping map[string]string

// Template holds the subject and HTML body token strings.
type Template struct {
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

// Result is the per-row outcome handed back to the caller when a run completes.
type Result struct {
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject"`
	Status    DeliveryStatus `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditRow is the flattened record staged for the remote log table.
type AuditRow struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
}

// Values returns the row as the ordered tuple written to the workbook table.
func (a AuditRow) Values() []any {
	return []any{
		a.Timestamp.UTC().Format(time.RFC3339),
		a.Actor,
		a.Action,
		a.Recipient,
		a.Message,
	}
}

// RunStatus represents the lifecycle state of a dispatch run.
type RunStatus string

// RunStatus constants.
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Run summarises a dispatch run for history views.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Actor     string    `json:"actor"`
	Status    RunStatus `json:"status"`
	Requested int       `json:"requested"`
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	Results   []Result  `json:"results,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Tally counts sent and failed results.
func Tally(results []Result) (sent, failed int) {
	for _, r := range results {
		switch r.Status {
		case DeliveryStatusSent:
			sent++
		case DeliveryStatusFailed:
			failed++
		}
	}
	return sent, failed
}
