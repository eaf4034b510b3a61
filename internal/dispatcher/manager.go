package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned by RunManager.Start while another run is active.
var ErrRunInProgress = errors.New("a dispatch run is already in progress")

// JobRunner executes one job synchronously. *Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, job Job) *Outcome
}

// ActiveRun is the run currently owned by a RunManager.
type ActiveRun struct {
	ID        uuid.UUID `json:"id"`
	Requested int       `json:"requested"`
	StartedAt time.Time `json:"started_at"`

	mu       sync.Mutex
	progress Progress
	done     chan struct{}
	outcome  *Outcome
}

// Progress returns the latest progress snapshot.
func (a *ActiveRun) Progress() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// Done is closed once the run has finished.
func (a *ActiveRun) Done() <-chan struct{} { return a.done }

// Outcome is nil until Done is closed.
func (a *ActiveRun) Outcome() *Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// RunManager runs at most one dispatch at a time in the background.
type RunManager struct {
	mu       sync.Mutex
	current  *ActiveRun
	cancelFn context.CancelFunc
	runner   JobRunner
}

// NewRunManager creates a manager around runner.
func NewRunManager(runner JobRunner) *RunManager {
	return &RunManager{runner: runner}
}

// Start launches job in the background and returns immediately.
func (m *RunManager) Start(_ context.Context, job Job) (*ActiveRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrRunInProgress
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	// detached from the request context: the run outlives the HTTP call
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	active := &ActiveRun{
		ID:        job.ID,
		Requested: job.Count,
		StartedAt: time.Now(),
		progress:  Progress{RunID: job.ID, Requested: job.Count},
		done:      make(chan struct{}),
	}
	m.current = active

	callerProgress := job.OnProgress
	job.OnProgress = func(p Progress) {
		active.mu.Lock()
		active.progress = p
		active.mu.Unlock()
		if callerProgress != nil {
			callerProgress(p)
		}
	}

	go m.run(runCtx, active, job)

	return active, nil
}

// Stop cancels the current run; it ends as a fatal outcome after the row in flight.
// Safe to call when nothing is running.
func (m *RunManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFn != nil {
		m.cancelFn()
	}
}

// Current returns the active run or nil.
func (m *RunManager) Current() *ActiveRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsRunning reports whether a run is active.
func (m *RunManager) IsRunning() bool {
	return m.Current() != nil
}

func (m *RunManager) run(ctx context.Context, active *ActiveRun, job Job) {
	out := m.runner.Run(ctx, job)

	active.mu.Lock()
	active.outcome = out
	active.mu.Unlock()

	m.mu.Lock()
	if m.current == active {
		m.current = nil
		if m.cancelFn != nil {
			m.cancelFn()
			m.cancelFn = nil
		}
	}
	m.mu.Unlock()

	close(active.done)
}
