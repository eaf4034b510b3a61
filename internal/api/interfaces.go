package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/models"
)

// RunManager starts and tracks background runs. *dispatcher.RunManager implements it.
type RunManager interface {
	Start(ctx context.Context, job dispatcher.Job) (*dispatcher.ActiveRun, error)
	Stop()
	Current() *dispatcher.ActiveRun
	IsRunning() bool
}

// RunHistory reads recorded runs. *repository.RunStore implements it.
type RunHistory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Run, error)
	List(ctx context.Context, limit int) ([]*models.Run, error)
}
