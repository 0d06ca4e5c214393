package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/poiesic/libris/core"
	"github.com/poiesic/libris/storage"
)

// Job records live in their own collection as payload-only points keyed by
// job id, so they survive worker restarts and remain visible to any process
// polling status.

// jobScrollPage bounds one purge scan page.
const jobScrollPage = 256

// CreateJob writes a new job record.
func (s *Store) CreateJob(ctx context.Context, job *core.Job) error {
	return s.writeJob(ctx, job)
}

// UpdateJob overwrites an existing job record.
func (s *Store) UpdateJob(ctx context.Context, job *core.Job) error {
	job.UpdatedAt = time.Now().UTC()
	return s.writeJob(ctx, job)
}

func (s *Store) writeJob(ctx context.Context, job *core.Job) error {
	payload := map[string]any{
		"status":     string(job.Status),
		"progress":   job.Progress,
		"error":      job.Error,
		"created_at": job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.Result != nil {
		encoded, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("%w: encoding job result: %w", storage.ErrSerializationFailed, err)
		}
		payload["result"] = string(encoded)
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: JobsCollection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(job.ID),
			Vectors: qdrant.NewVectors(0),
			Payload: qdrant.NewValueMap(payload),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("writing job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a job record by id.
func (s *Store) GetJob(ctx context.Context, id string) (*core.Job, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: JobsCollection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return jobFromPayload(id, points[0].GetPayload())
}

// PurgeJobs deletes terminal jobs whose last update is older than the
// retention window.
func (s *Store) PurgeJobs(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	var stale []*qdrant.PointId

	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: JobsCollection,
			Limit:          qdrant.PtrOf(uint32(jobScrollPage)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return 0, fmt.Errorf("scanning jobs: %w", err)
		}
		if len(points) == 0 {
			break
		}

		for _, p := range points {
			payload := p.GetPayload()
			status := core.JobStatus(payload["status"].GetStringValue())
			if status != core.JobCompleted && status != core.JobFailed {
				continue
			}
			updated, err := time.Parse(time.RFC3339Nano, payload["updated_at"].GetStringValue())
			if err != nil || updated.After(cutoff) {
				continue
			}
			stale = append(stale, p.GetId())
		}

		if len(points) < jobScrollPage {
			break
		}
		offset = points[len(points)-1].GetId()
	}

	if len(stale) == 0 {
		return 0, nil
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: JobsCollection,
		Points:         qdrant.NewPointsSelector(stale...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("purging %d jobs: %w", len(stale), err)
	}
	s.logger.Info("purged terminal jobs", "count", len(stale), "retention", retention)
	return len(stale), nil
}

func jobFromPayload(id string, payload map[string]*qdrant.Value) (*core.Job, error) {
	job := &core.Job{
		ID:       id,
		Status:   core.JobStatus(payload["status"].GetStringValue()),
		Progress: payload["progress"].GetStringValue(),
		Error:    payload["error"].GetStringValue(),
	}
	if v := payload["created_at"].GetStringValue(); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := payload["updated_at"].GetStringValue(); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = t
		}
	}
	if encoded := payload["result"].GetStringValue(); encoded != "" {
		var result core.IngestResult
		if err := json.Unmarshal([]byte(encoded), &result); err != nil {
			return nil, fmt.Errorf("%w: decoding job result: %w", storage.ErrSerializationFailed, err)
		}
		job.Result = &result
	}
	return job, nil
}
