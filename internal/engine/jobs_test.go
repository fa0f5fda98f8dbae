package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/lock"
	"github.com/Veraticus/spice-insights/internal/model"
	"github.com/Veraticus/spice-insights/internal/testutil"
)

func waitForJob(t *testing.T, runner *JobRunner, id string) *model.ClassificationJob {
	t.Helper()
	var job *model.ClassificationJob
	require.Eventually(t, func() bool {
		got, err := runner.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = got
		return got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestJobRunnerSubmit(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 7, "NETFLIX", "TESCO", "UBER", "NETFLIX")

	runner := NewJobRunner(store, NewBatchEngine(store, newKeywordClassifier()), lock.NewMemory(), JobRunnerOptions{})
	ctx := context.Background()
	runner.Start(ctx)
	t.Cleanup(func() { _ = runner.Shutdown(ctx) })

	queued, err := runner.Submit(ctx, testUser, 7)
	require.NoError(t, err)
	assert.Equal(t, model.JobQueued, queued.Status)
	assert.NotEmpty(t, queued.ID)

	job := waitForJob(t, runner, queued.ID)
	assert.Equal(t, model.JobDone, job.Status)
	assert.Equal(t, 3, job.Processed)
	assert.Equal(t, 3, job.Classified)
	assert.Zero(t, job.Failed)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.FinishedAt)
}

func TestJobRunnerRejectsConcurrentRunForSameFile(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 8, "NETFLIX")

	locker := lock.NewMemory()
	held, err := locker.TryLock(context.Background(), lock.Key(testUser, 8), time.Minute)
	require.NoError(t, err)
	defer func() { _ = held.Unlock(context.Background()) }()

	classifier := newKeywordClassifier()
	runner := NewJobRunner(store, NewBatchEngine(store, classifier), locker, JobRunnerOptions{})

	job, err := runner.NewJob(context.Background(), testUser, 8)
	require.NoError(t, err)

	err = runner.Run(context.Background(), job)
	require.ErrorIs(t, err, common.ErrJobInProgress)

	stored, err := runner.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, stored.Status)
	assert.Contains(t, stored.Error, "already in progress")
	assert.Empty(t, classifier.batches)
}

func TestJobRunnerReleasesLock(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 9, "NETFLIX")

	locker := lock.NewMemory()
	runner := NewJobRunner(store, NewBatchEngine(store, newKeywordClassifier()), locker, JobRunnerOptions{})
	ctx := context.Background()

	for range 2 {
		job, err := runner.NewJob(ctx, testUser, 9)
		require.NoError(t, err)
		require.NoError(t, runner.Run(ctx, job))
	}

	unlock, err := locker.TryLock(ctx, lock.Key(testUser, 9), time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock.Unlock(ctx))
}

func TestJobRunnerProgress(t *testing.T) {
	store := testutil.NewStorage(t)
	testutil.SeedExpenses(t, store, testUser, 10, "NETFLIX", "TESCO", "UBER")

	opts := JobRunnerOptions{Batch: BatchOptions{ChunkSize: 1}}
	runner := NewJobRunner(store, NewBatchEngine(store, newKeywordClassifier()), lock.NewMemory(), opts)

	job, err := runner.NewJob(context.Background(), testUser, 10)
	require.NoError(t, err)

	var seen []int
	require.NoError(t, runner.RunWithProgress(context.Background(), job, func(done, _ int) {
		seen = append(seen, done)
	}))
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestJobRunnerShutdown(t *testing.T) {
	store := testutil.NewStorage(t)
	runner := NewJobRunner(store, NewBatchEngine(store, newKeywordClassifier()), lock.NewMemory(), JobRunnerOptions{})
	ctx := context.Background()
	runner.Start(ctx)

	require.NoError(t, runner.Shutdown(ctx))
	require.NoError(t, runner.Shutdown(ctx))

	_, err := runner.Submit(ctx, testUser, 1)
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestJobRunnerFailsQueuedJobsWhenStopped(t *testing.T) {
	store := testutil.NewStorage(t)
	runner := NewJobRunner(store, NewBatchEngine(store, newKeywordClassifier()), lock.NewMemory(), JobRunnerOptions{Workers: 1})
	ctx := context.Background()

	var ids []string
	for fileID := int64(1); fileID <= 3; fileID++ {
		job, err := runner.Submit(ctx, testUser, fileID)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	stopped, cancel := context.WithCancel(ctx)
	cancel()
	runner.Start(stopped)
	require.NoError(t, runner.Shutdown(ctx))

	for _, id := range ids {
		job, err := runner.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.JobFailed, job.Status, id)
		assert.NotEmpty(t, job.Error)
		assert.NotNil(t, job.FinishedAt)
	}

	_, err := runner.Submit(ctx, testUser, 4)
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestJobRunnerValidatesUser(t *testing.T) {
	store := testutil.NewStorage(t)
	runner := NewJobRunner(store, NewBatchEngine(store, newKeywordClassifier()), lock.NewMemory(), JobRunnerOptions{})

	_, err := runner.NewJob(context.Background(), "", 1)
	assert.ErrorIs(t, err, common.ErrValidation)
}
