package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// runRecord is the dispatch_runs row.
type runRecord struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Actor      string          `gorm:"not null"`
	Status     string          `gorm:"not null"`
	Requested  int             `gorm:"not null;default:0"`
	Processed  int             `gorm:"not null;default:0"`
	Sent       int             `gorm:"not null;default:0"`
	Failed     int             `gorm:"not null;default:0"`
	Error      string          `gorm:"not null;default:''"`
	Results    []models.Result `gorm:"type:text;serializer:json"`
	StartedAt  time.Time       `gorm:"not null;index"`
	FinishedAt *time.Time
}

func (runRecord) TableName() string { return "dispatch_runs" }

func recordFromRun(run *models.Run) *runRecord {
	return &runRecord{
		ID:         run.ID,
		Actor:      run.Actor,
		Status:     string(run.Status),
		Requested:  run.Requested,
		Processed:  run.Processed,
		Sent:       run.Sent,
		Failed:     run.Failed,
		Error:      run.Error,
		Results:    run.Results,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func (r *runRecord) toRun() *models.Run {
	return &models.Run{
		ID:         r.ID,
		Actor:      r.Actor,
		Status:     models.RunStatus(r.Status),
		Requested:  r.Requested,
		Processed:  r.Processed,
		Sent:       r.Sent,
		Failed:     r.Failed,
		Error:      r.Error,
		Results:    r.Results,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// RunStore keeps the history of dispatch runs.
type RunStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewRunStore creates a new run store.
func NewRunStore(db *gorm.DB, log *logger.Logger) *RunStore {
	return &RunStore{db: db, log: log}
}

// AutoMigrate creates the runs table. Postgres deployments use the SQL migrations instead.
func (s *RunStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&runRecord{}); err != nil {
		return fmt.Errorf("migrate dispatch_runs: %w", err)
	}
	return nil
}

// StartRun inserts a RUNNING run.
func (s *RunStore) StartRun(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	if err := s.db.WithContext(ctx).Create(recordFromRun(run)).Error; err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	s.log.Info().
		Str("run_id", run.ID.String()).
		Int("requested", run.Requested).
		Msg("run recorded")
	return nil
}

// FinishRun stores the final counters, status and results.
func (s *RunStore) FinishRun(ctx context.Context, run *models.Run) error {
	res := s.db.WithContext(ctx).Save(recordFromRun(run))
	if res.Error != nil {
		return fmt.Errorf("finish run: %w", res.Error)
	}

	s.log.Info().
		Str("run_id", run.ID.String()).
		Str("status", string(run.Status)).
		Int("sent", run.Sent).
		Int("failed", run.Failed).
		Msg("run finished")
	return nil
}

// Get returns one run with its results.
func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var rec runRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return rec.toRun(), nil
}

// List returns the most recent runs first, without their result lists.
func (s *RunStore) List(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var recs []runRecord
	err := s.db.WithContext(ctx).
		Omit("results").
		Order("started_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]*models.Run, len(recs))
	for i := range recs {
		runs[i] = recs[i].toRun()
	}
	return runs, nil
}
