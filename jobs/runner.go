// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package jobs runs ingestion requests asynchronously against a durable job
// store. A job moves pending -> processing -> completed or failed; each
// transition and every pipeline progress line is persisted, so callers can
// poll the job id from any process that shares the store.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/ingestion"
	"github.com/poiesic/libris/storage"
)

const (
	// DefaultJobTimeout is the hard ceiling on one job's processing time.
	// The pipeline's rollback runs under its own detached context, so a
	// timed-out job leaves no partial points behind.
	DefaultJobTimeout = 10 * time.Minute

	// DefaultWorkers is the number of jobs processed concurrently.
	DefaultWorkers = 2

	// DefaultRetention is how long finished jobs stay queryable before a
	// purge removes them.
	DefaultRetention = 7 * 24 * time.Hour
)

var (
	ErrJobStoreRequired = errors.New("job store is required")
	ErrIngesterRequired = errors.New("ingester is required")
)

// Ingester is the ingestion contract the runner depends on.
// Implemented by ingestion.Pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) (*core.IngestResult, error)
}

// Runner executes ingestion jobs on a bounded worker pool and records their
// lifecycle in a JobStore.
type Runner struct {
	store    storage.JobStore
	ingester Ingester
	pool     *ants.Pool
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// WithTimeout sets the per-job processing deadline.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) error {
		if d <= 0 {
			return errors.New("job timeout must be positive")
		}
		r.timeout = d
		return nil
	}
}

// WithWorkers sets how many jobs run concurrently.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) error {
		if n < 1 {
			n = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRunner creates a Runner over the given job store and ingester.
func NewRunner(store storage.JobStore, ingester Ingester, opts ...RunnerOption) (*Runner, error) {
	if store == nil {
		return nil, ErrJobStoreRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	pool, err := ants.NewPool(DefaultWorkers)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		store:    store,
		ingester: ingester,
		pool:     pool,
		timeout:  DefaultJobTimeout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.pool.Release()
			return nil, optErr
		}
	}

	return r, nil
}

// Enqueue records a pending job and schedules it on the worker pool,
// returning the job id immediately. Enqueue blocks only when every worker is
// busy and the pool queue is full.
func (r *Runner) Enqueue(ctx context.Context, req ingestion.Request) (string, error) {
	now := time.Now().UTC()
	job := &core.Job{
		ID:        uuid.NewString(),
		Status:    core.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return "", err
	}

	r.wg.Add(1)
	if err := r.pool.Submit(func() {
		defer r.wg.Done()
		r.run(job.ID, req)
	}); err != nil {
		r.wg.Done()
		job.Status = core.JobFailed
		job.Error = err.Error()
		if updateErr := r.store.UpdateJob(ctx, job); updateErr != nil {
			r.logger.Error("could not mark unscheduled job failed", "job_id", job.ID, "err", updateErr)
		}
		return "", err
	}

	r.logger.Info("job enqueued", "job_id", job.ID, "filename", req.Filename, "library", req.Library)
	return job.ID, nil
}

// run drives one job to a terminal state under the runner's timeout.
func (r *Runner) run(jobID string, req ingestion.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		r.logger.Error("could not load job before processing", "job_id", jobID, "err", err)
		return
	}

	job.Status = core.JobProcessing
	r.persist(ctx, job)

	// Progress updates come from the pipeline's main goroutine; a failed
	// persist never fails the job.
	req.Progress = func(stage string) {
		job.Progress = stage
		r.persist(ctx, job)
	}

	result, err := r.ingester.Ingest(ctx, req)
	if err != nil {
		job.Status = core.JobFailed
		job.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			job.Error = "job timed out after " + r.timeout.String() + ": " + err.Error()
		}
		r.logger.Warn("job failed", "job_id", jobID, "err", err)
	} else {
		job.Status = core.JobCompleted
		job.Progress = ""
		job.Result = result
	}

	// The final transition must land even when the failure was the timeout
	// itself.
	r.persist(context.WithoutCancel(ctx), job)
}

func (r *Runner) persist(ctx context.Context, job *core.Job) {
	job.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateJob(ctx, job); err != nil {
		r.logger.Error("could not persist job update", "job_id", job.ID, "status", job.Status, "err", err)
	}
}

// Status returns the current job record.
func (r *Runner) Status(ctx context.Context, id string) (*core.Job, error) {
	return r.store.GetJob(ctx, id)
}

// Purge removes terminal jobs older than the retention window and returns
// the removal count.
func (r *Runner) Purge(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return r.store.PurgeJobs(ctx, retention)
}

// Wait blocks until every scheduled job reaches a terminal state.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close waits for in-flight jobs and releases the worker pool.
func (r *Runner) Close() {
	r.wg.Wait()
	r.pool.Release()
}
