package job

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/db"
)

func newTestQueue(t *testing.T) *JobQueue {
	t.Helper()
	d, err := db.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	q := NewJobQueue(d.DB(), zap.NewNop().Sugar())
	t.Cleanup(func() {
		q.Stop()
		d.Close()
	})
	return q
}

func waitStatus(t *testing.T, q *JobQueue, id string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.GetJob(id)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestQueueRunsJob(t *testing.T) {
	q := newTestQueue(t)
	q.RegisterHandler(JobTranslate, func(ctx context.Context, j *Job, updateProgress func(float64)) error {
		var p TranslateParams
		assert.NoError(t, json.Unmarshal(j.Params, &p))
		updateProgress(0.5)
		j.Result, _ = json.Marshal(TranslateResult{OutputPath: "out." + p.TargetLang + ".srt", Translated: 3})
		return nil
	})
	q.Start()

	created, err := q.Enqueue(JobTranslate, "show.srt", TranslateParams{TargetLang: "ja", Engine: "echo"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)

	done := waitStatus(t, q, created.ID, StatusCompleted)
	assert.Equal(t, 1.0, done.Progress)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)

	var result TranslateResult
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.Equal(t, "out.ja.srt", result.OutputPath)

	jobs, err := q.ListJobs()
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestQueueFailAndRetry(t *testing.T) {
	q := newTestQueue(t)
	attempts := 0
	q.RegisterHandler(JobTranslate, func(ctx context.Context, j *Job, updateProgress func(float64)) error {
		attempts++
		if attempts == 1 {
			return errors.New("configure gemini: missing credential")
		}
		return nil
	})
	q.Start()

	created, err := q.Enqueue(JobTranslate, "show.srt", TranslateParams{})
	require.NoError(t, err)

	failed := waitStatus(t, q, created.ID, StatusFailed)
	assert.Equal(t, "configure gemini: missing credential", failed.Error)

	require.NoError(t, q.RetryJob(created.ID))
	done := waitStatus(t, q, created.ID, StatusCompleted)
	assert.Empty(t, done.Error)

	assert.Error(t, q.RetryJob(created.ID), "completed jobs cannot be retried")
}

func TestQueueCancelRunningJob(t *testing.T) {
	q := newTestQueue(t)
	started := make(chan struct{})
	q.RegisterHandler(JobTranslate, func(ctx context.Context, j *Job, updateProgress func(float64)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	q.Start()

	created, err := q.Enqueue(JobTranslate, "show.srt", TranslateParams{})
	require.NoError(t, err)

	<-started
	require.NoError(t, q.CancelJob(created.ID))
	waitStatus(t, q, created.ID, StatusCancelled)
}

func TestQueueCancelWaitsForHandler(t *testing.T) {
	q := newTestQueue(t)
	started := make(chan struct{}, 2)
	var firstReturned atomic.Bool
	var overlapped atomic.Bool
	q.RegisterHandler(JobTranslate, func(ctx context.Context, j *Job, updateProgress func(float64)) error {
		if j.FilePath == "second.srt" {
			overlapped.Store(!firstReturned.Load())
			return nil
		}
		started <- struct{}{}
		<-ctx.Done()
		// cleanup after cancellation still belongs to this job
		time.Sleep(200 * time.Millisecond)
		firstReturned.Store(true)
		return ctx.Err()
	})
	q.Start()

	first, err := q.Enqueue(JobTranslate, "first.srt", TranslateParams{})
	require.NoError(t, err)
	<-started

	second, err := q.Enqueue(JobTranslate, "second.srt", TranslateParams{})
	require.NoError(t, err)
	require.NoError(t, q.CancelJob(first.ID))
	assert.ErrorIs(t, q.RetryJob(first.ID), ErrJobStopping)

	waitStatus(t, q, second.ID, StatusCompleted)
	assert.False(t, overlapped.Load(), "next job started before the cancelled handler returned")
	waitStatus(t, q, first.ID, StatusCancelled)
}

func TestQueueNoHandler(t *testing.T) {
	q := newTestQueue(t)
	q.Start()

	created, err := q.Enqueue(JobType("transcribe"), "a.srt", nil)
	require.NoError(t, err)

	failed := waitStatus(t, q, created.ID, StatusFailed)
	assert.Contains(t, failed.Error, "no handler")
}
