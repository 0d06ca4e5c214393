package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/ingestion"
	"github.com/poiesic/libris/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]core.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]core.Job)}
}

func (f *fakeJobStore) CreateJob(ctx context.Context, job *core.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[job.ID]; ok {
		return storage.ErrDuplicateKey
	}
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobStore) UpdateJob(ctx context.Context, job *core.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[job.ID]; !ok {
		return storage.ErrNotFound
	}
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobStore) GetJob(ctx context.Context, id string) (*core.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &job, nil
}

func (f *fakeJobStore) PurgeJobs(ctx context.Context, retention time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for id, job := range f.jobs {
		terminal := job.Status == core.JobCompleted || job.Status == core.JobFailed
		if terminal && job.UpdatedAt.Before(cutoff) {
			delete(f.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// fakeIngester scripts the pipeline behavior for one job.
type fakeIngester struct {
	result *core.IngestResult
	err    error
	delay  time.Duration
	block  chan struct{}
}

func (f *fakeIngester) Ingest(ctx context.Context, req ingestion.Request) (*core.IngestResult, error) {
	if req.Progress != nil {
		req.Progress("extracting doc.md")
		req.Progress("embedding 4 chunks")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func testRequest() ingestion.Request {
	return ingestion.Request{
		Content:  []byte("# Doc\n\nBody.\n"),
		Filename: "doc.md",
		Library:  "lib",
		Version:  "1",
	}
}

func TestRunnerCompletesJob(t *testing.T) {
	store := newFakeJobStore()
	ingester := &fakeIngester{result: &core.IngestResult{Library: "lib", ChunksIndexed: 4, FilesProcessed: 1}}
	runner, err := NewRunner(store, ingester)
	require.NoError(t, err)
	defer runner.Close()

	id, err := runner.Enqueue(context.Background(), testRequest())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runner.Wait()

	job, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 4, job.Result.ChunksIndexed)
	assert.Empty(t, job.Error)
	assert.False(t, job.UpdatedAt.Before(job.CreatedAt))
}

func TestRunnerRecordsFailure(t *testing.T) {
	store := newFakeJobStore()
	ingester := &fakeIngester{err: core.NewStepError(core.StepEmbedding, "doc.md", core.KindTransientExhausted, errors.New("backend down"))}
	runner, err := NewRunner(store, ingester)
	require.NoError(t, err)
	defer runner.Close()

	id, err := runner.Enqueue(context.Background(), testRequest())
	require.NoError(t, err)
	runner.Wait()

	job, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, job.Error, "backend down")
	assert.Nil(t, job.Result)
}

func TestRunnerTimesOutStuckJob(t *testing.T) {
	store := newFakeJobStore()
	ingester := &fakeIngester{block: make(chan struct{})}
	runner, err := NewRunner(store, ingester, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	defer runner.Close()

	id, err := runner.Enqueue(context.Background(), testRequest())
	require.NoError(t, err)
	runner.Wait()

	job, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, job.Error, "timed out")
}

func TestRunnerPersistsProgress(t *testing.T) {
	store := newFakeJobStore()
	release := make(chan struct{})
	ingester := &fakeIngester{block: release, result: &core.IngestResult{FilesProcessed: 1}}
	runner, err := NewRunner(store, ingester)
	require.NoError(t, err)
	defer runner.Close()

	id, err := runner.Enqueue(context.Background(), testRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, getErr := runner.Status(context.Background(), id)
		return getErr == nil && job.Status == core.JobProcessing && job.Progress == "embedding 4 chunks"
	}, time.Second, 5*time.Millisecond)

	close(release)
	runner.Wait()

	job, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Empty(t, job.Progress)
}

func TestRunnerStatusUnknownJob(t *testing.T) {
	runner, err := NewRunner(newFakeJobStore(), &fakeIngester{})
	require.NoError(t, err)
	defer runner.Close()

	_, err = runner.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunnerPurge(t *testing.T) {
	store := newFakeJobStore()
	old := time.Now().UTC().Add(-48 * time.Hour)
	store.jobs["done"] = core.Job{ID: "done", Status: core.JobCompleted, UpdatedAt: old}
	store.jobs["dead"] = core.Job{ID: "dead", Status: core.JobFailed, UpdatedAt: old}
	store.jobs["live"] = core.Job{ID: "live", Status: core.JobProcessing, UpdatedAt: old}
	store.jobs["new"] = core.Job{ID: "new", Status: core.JobCompleted, UpdatedAt: time.Now().UTC()}

	runner, err := NewRunner(store, &fakeIngester{})
	require.NoError(t, err)
	defer runner.Close()

	removed, err := runner.Purge(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.GetJob(context.Background(), "live")
	assert.NoError(t, err)
	_, err = store.GetJob(context.Background(), "new")
	assert.NoError(t, err)
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(nil, &fakeIngester{})
	assert.ErrorIs(t, err, ErrJobStoreRequired)

	_, err = NewRunner(newFakeJobStore(), nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)

	_, err = NewRunner(newFakeJobStore(), &fakeIngester{}, WithTimeout(0))
	assert.Error(t, err)
}
