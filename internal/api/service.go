package api

import (
	"context"

	"organ/internal/store"
)

// JobReader abstracts store interactions needed for API queries.
type JobReader interface {
	ListJobs(ctx context.Context, statuses ...store.JobStatus) ([]*store.Job, error)
	Stats(ctx context.Context) (map[store.JobStatus]int, error)
	GetJob(ctx context.Context, id int64) (*store.Job, error)
	ListTransferHistory(ctx context.Context, limit int) ([]*store.TransferRecord, error)
}

// JobService exposes read-only job operations returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs filtered by status.
func (s *JobService) List(ctx context.Context, statuses ...store.JobStatus) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns job summary counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

// Describe fetches a single job.
func (s *JobService) Describe(ctx context.Context, id int64) (*Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// History returns recent transfer history, newest first.
func (s *JobService) History(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.ListTransferHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromTransferRecords(records), nil
}
