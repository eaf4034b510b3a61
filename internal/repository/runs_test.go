package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/models"
)

func newTestRunStore(t *testing.T) *RunStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	store := NewRunStore(db, logger.Nop())
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestRunStore_StartFinishGet(t *testing.T) {
	store := newTestRunStore(t)
	ctx := context.Background()

	run := &models.Run{
		ID:        uuid.New(),
		Actor:     "ops",
		Requested: 2,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.StartRun(ctx, run))
	assert.Equal(t, models.RunStatusRunning, run.Status)

	got, err := store.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	finished := run.StartedAt.Add(time.Minute)
	run.Status = models.RunStatusCompleted
	run.Processed = 2
	run.Sent = 1
	run.Failed = 1
	run.FinishedAt = &finished
	run.Results = []models.Result{
		{Recipient: "a@x.com", Subject: "Hi", Status: models.DeliveryStatusSent},
		{Recipient: "bad", Subject: "Hi", Status: models.DeliveryStatusFailed, Reason: "invalid recipient"},
	}
	require.NoError(t, store.FinishRun(ctx, run))

	got, err = store.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Sent)
	assert.Equal(t, 1, got.Failed)
	require.NotNil(t, got.FinishedAt)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "invalid recipient", got.Results[1].Reason)
}

func TestRunStore_Get_NotFound(t *testing.T) {
	store := newTestRunStore(t)

	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStore_List_NewestFirst(t *testing.T) {
	store := newTestRunStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run := &models.Run{ID: uuid.New(), Actor: "ops", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.StartRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}
