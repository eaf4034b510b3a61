// Package dispatcher runs bulk mail dispatches: one rendered message per row,
// sent strictly sequentially, with every outcome recorded and audited.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/blockedby/mailmerge/internal/config"
	"github.com/blockedby/mailmerge/internal/graph"
	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
	"github.com/blockedby/mailmerge/internal/render"
	"github.com/blockedby/mailmerge/internal/validation"
)

// ActionSendMail is the action label of every audit row written by a run.
const ActionSendMail = "send mail"

// FatalError aborts a run outside per-row handling (setup failure, cancellation).
// No result list is returned alongside it.
type FatalError struct {
	RunID     uuid.UUID
	Processed int
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("dispatch run %s aborted after %d rows: %v", e.RunID, e.Processed, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Job is one dispatch request.
type Job struct {
	ID              uuid.UUID
	Rows            []models.Row
	RecipientColumn string
	Template        models.Template
	Mapping         models.ColumnMapping
	Count           int
	Config          config.RunConfig

	// Preflight runs before the first row, e.g. to acquire a token.
	Preflight func(ctx context.Context) error

	OnProgress ProgressFunc
}

// ValidationInput returns the validator view of the job.
func (j Job) ValidationInput() validation.Input {
	return validation.Input{
		Rows:            j.Rows,
		RecipientColumn: j.RecipientColumn,
		Template:        j.Template,
		Mapping:         j.Mapping,
		RequestedCount:  j.Count,
	}
}

// Outcome is the result of Run. Exactly one of Results or Err is meaningful:
// Err is a *validation.Error when the run never started and a *FatalError when it aborted.
type Outcome struct {
	RunID      uuid.UUID         `json:"run_id"`
	Report     validation.Report `json:"report"`
	Results    []models.Result   `json:"results,omitempty"`
	Requested  int               `json:"requested"`
	Processed  int               `json:"processed"`
	Audit      BufferStats       `json:"audit"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Err        error             `json:"-"`
}

// Failed reports whether the run did not complete.
func (o *Outcome) Failed() bool { return o.Err != nil }

// Started reports whether validation let the run begin.
func (o *Outcome) Started() bool {
	var verr *validation.Error
	return !errors.As(o.Err, &verr)
}

// Summary is the compact form of an Outcome published to listeners.
type Summary struct {
	RunID      uuid.UUID   `json:"run_id"`
	Requested  int         `json:"requested"`
	Processed  int         `json:"processed"`
	Sent       int         `json:"sent"`
	Failed     int         `json:"failed"`
	Error      string      `json:"error,omitempty"`
	Audit      BufferStats `json:"audit"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Summary returns counters without the per-row results.
func (o *Outcome) Summary() Summary {
	s := Summary{
		RunID:      o.RunID,
		Requested:  o.Requested,
		Processed:  o.Processed,
		Audit:      o.Audit,
		FinishedAt: o.FinishedAt,
	}
	s.Sent, s.Failed = models.Tally(o.Results)
	if o.Err != nil {
		s.Error = o.Err.Error()
	}
	return s
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Mail      MailSender
	Sink      AuditSink
	Recorder  RunRecorder
	Notifiers []Notifier
	Log       *logger.Logger
}

// Runner executes dispatch runs. A Runner may be reused; each Run owns its own
// buffer and counters.
type Runner struct {
	mail      MailSender
	sink      AuditSink
	recorder  RunRecorder
	notifiers []Notifier
	policy    *bluemonday.Policy
	log       *logger.Logger
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(deps Deps) *Runner {
	log := deps.Log
	if log == nil {
		log = logger.Get()
	}
	return &Runner{
		mail:      deps.Mail,
		sink:      deps.Sink,
		recorder:  deps.Recorder,
		notifiers: deps.Notifiers,
		policy:    bluemonday.UGCPolicy(),
		log:       log,
		now:       time.Now,
	}
}

// Run validates the job and, if allowed, dispatches its first Count rows in order.
func (r *Runner) Run(ctx context.Context, job Job) *Outcome {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	out := &Outcome{
		RunID:     job.ID,
		Requested: job.Count,
		StartedAt: r.now(),
		Report:    validation.Validate(job.ValidationInput()),
	}

	if !out.Report.OK {
		out.Err = out.Report.Err()
		out.FinishedAt = r.now()
		return out
	}

	rc := job.Config
	rc.ApplyDefaults()

	log := r.log.With("run_id", job.ID.String())
	buf := NewAuditBuffer(r.sink, rc.FlushThreshold, log)
	tr := &tracker{
		runID:      job.ID,
		requested:  job.Count,
		onProgress: job.OnProgress,
		notifiers:  r.notifiers,
		log:        log,
	}

	run := &models.Run{
		ID:        job.ID,
		Actor:     rc.Actor,
		Status:    models.RunStatusRunning,
		Requested: job.Count,
		StartedAt: out.StartedAt,
	}
	r.recordStart(ctx, log, run)

	log.Info().Int("rows", job.Count).Msg("dispatch run started")

	results, err := r.loop(ctx, job, rc, buf, tr, log)
	if err != nil {
		// best effort: keep what was buffered even if ctx is already cancelled
		log.Debug().Int("pending_audit_rows", buf.Len()).Msg("flushing audit rows after abort")
		buf.Flush(context.WithoutCancel(ctx))

		out.Err = &FatalError{RunID: job.ID, Processed: tr.processed, Err: err}
		out.Processed = tr.processed
		out.Audit = buf.Stats()
		out.FinishedAt = r.now()

		log.Error().Err(err).Int("processed", tr.processed).Msg("dispatch run aborted")
		r.finish(ctx, log, run, out, tr)
		return out
	}

	buf.Flush(ctx)

	out.Results = results
	out.Processed = tr.processed
	out.Audit = buf.Stats()
	out.FinishedAt = r.now()

	sent, failed := models.Tally(results)
	log.Info().
		Int("sent", sent).
		Int("failed", failed).
		Int("audit_partial", out.Audit.Partial).
		Int("audit_dropped", out.Audit.Dropped).
		Msg("dispatch run completed")

	r.finish(ctx, log, run, out, tr)
	return out
}

// loop processes rows strictly one after another. Row failures are recorded
// and never abort the loop; only preflight and cancellation do.
func (r *Runner) loop(ctx context.Context, job Job, rc config.RunConfig, buf *AuditBuffer, tr *tracker, log *logger.Logger) ([]models.Result, error) {
	if r.mail == nil {
		return nil, errors.New("mail sender not configured")
	}

	if job.Preflight != nil {
		if err := job.Preflight(ctx); err != nil {
			return nil, fmt.Errorf("preflight: %w", err)
		}
	}

	rows := job.Rows[:job.Count]
	results := make([]models.Result, 0, len(rows))
	pacer := NewPacer(rc.SendsPerSecond)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, message := r.processRow(ctx, i, row, job, rc, pacer, tr)

		results = append(results, res)
		buf.Push(models.AuditRow{
			Timestamp: res.Timestamp,
			Actor:     rc.Actor,
			Action:    ActionSendMail,
			Recipient: res.Recipient,
			Message:   message,
		})
		tr.rowDone(ctx, res)

		log.Debug().
			Int("row", i).
			Str("recipient", res.Recipient).
			Str("status", string(res.Status)).
			Msg(message)

		buf.FlushIfFull(ctx)
	}

	return results, nil
}

// processRow takes one row through Pending -> Rendered -> Sent|Failed and
// returns its result plus the audit message.
func (r *Runner) processRow(ctx context.Context, i int, row models.Row, job Job, rc config.RunConfig, pacer *Pacer, tr *tracker) (models.Result, string) {
	state := RowPending
	recipient := row.Recipient(job.RecipientColumn)

	if !validation.IsValidEmail(recipient) {
		state = tr.transition(i, state, RowFailedInvalidRecipient)
		return models.Result{
			Recipient: recipient,
			Subject:   job.Template.Subject,
			Status:    state.Status(),
			Reason:    ReasonInvalidRecipient,
			Timestamp: r.now(),
		}, ReasonInvalidRecipient
	}

	subject, body := render.Template(job.Template, row, job.Mapping)
	if rc.SanitizeHTML {
		body = r.policy.Sanitize(body)
	}
	state = tr.transition(i, state, RowRendered)

	err := pacer.Wait(ctx)
	if err == nil {
		err = r.mail.Send(ctx, graph.Message{
			To:              recipient,
			Subject:         subject,
			HTML:            body,
			SaveToSentItems: rc.SaveToSent(),
		})
	}

	if err != nil {
		if gerr, ok := graph.AsError(err); ok && gerr.Throttled() && gerr.RetryAfter > 0 {
			pacer.Pause(gerr.RetryAfter)
		}
		reason := FailReason(err)
		state = tr.transition(i, state, RowFailedSendError)
		return models.Result{
			Recipient: recipient,
			Subject:   subject,
			Status:    state.Status(),
			Reason:    reason,
			Timestamp: r.now(),
		}, reason
	}

	state = tr.transition(i, state, RowSent)
	return models.Result{
		Recipient: recipient,
		Subject:   subject,
		Status:    state.Status(),
		Timestamp: r.now(),
	}, ReasonSent
}

func (r *Runner) recordStart(ctx context.Context, log *logger.Logger, run *models.Run) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.StartRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("could not record run start")
	}
}

func (r *Runner) finish(ctx context.Context, log *logger.Logger, run *models.Run, out *Outcome, tr *tracker) {
	ctx = context.WithoutCancel(ctx)

	finished := out.FinishedAt
	run.FinishedAt = &finished
	run.Processed = out.Processed
	run.Results = out.Results
	run.Sent, run.Failed = models.Tally(out.Results)
	run.Status = models.RunStatusCompleted
	if out.Err != nil {
		run.Status = models.RunStatusFailed
		run.Error = out.Err.Error()
	}

	if r.recorder != nil {
		if err := r.recorder.FinishRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("could not record run result")
		}
	}

	tr.finished(ctx, out)
}
