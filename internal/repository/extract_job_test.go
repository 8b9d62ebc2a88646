package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, common.DatabaseConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(ctx, nil))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background(), nil))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestExtractJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	job, err := repo.Create(ctx, "INVOICE #1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusQueued, job.Status)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "INVOICE #1", got.InputText)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.ExtractedJSON)

	require.NoError(t, repo.MarkRunning(ctx, job.ID))
	require.NoError(t, repo.FinishSuccess(ctx, job.ID, "done", "### Response: {total: 5}", []byte(`{"total":"5"}`), []string{"normalized vendor->seller_name"}))

	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusOK, got.Status)
	assert.Equal(t, "done", got.Stage)
	assert.JSONEq(t, `{"total":"5"}`, string(got.ExtractedJSON))
	assert.Equal(t, []string{"normalized vendor->seller_name"}, got.Warnings)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(*got.StartedAt))

	// terminal jobs cannot move again
	err = repo.FinishFailure(ctx, job.ID, "failed", "", "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.ErrorIs(t, repo.MarkRunning(ctx, job.ID), ErrInvalidTransition)
}

func TestExtractJobFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	job, err := repo.Create(ctx, "no json here")
	require.NoError(t, err)
	require.NoError(t, repo.FinishFailure(ctx, job.ID, "failed", "I cannot help", "no opening brace"))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "no opening brace", got.ErrorMessage)
	assert.Equal(t, "I cannot help", got.RawOutput)
	assert.Nil(t, got.StartedAt)
}

func TestExtractJobNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	_, err := repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.MarkRunning(ctx, uuid.New()), common.ErrNotFound)
}

func TestExtractJobList(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	var ids []uuid.UUID
	for _, text := range []string{"a", "b", "c"} {
		job, err := repo.Create(ctx, text)
		require.NoError(t, err)
		ids = append(ids, job.ID)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, repo.FinishFailure(ctx, ids[0], "failed", "", "boom"))

	all, err := repo.List(ctx, JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].InputText, "newest first")

	queued, err := repo.List(ctx, JobFilter{Status: constants.JobStatusQueued, Limit: 1})
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "c", queued[0].InputText)

	future := time.Now().Add(time.Hour)
	none, err := repo.List(ctx, JobFilter{From: &future})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", pg.rebind("a = ? AND b IN (?, ?)"))
	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
