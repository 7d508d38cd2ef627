package api

import (
	"encoding/json"
	"slices"

	"organ/internal/stage"
	"organ/internal/store"
	"organ/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job *store.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:         job.ID,
		SourcePath: job.SourcePath,
		SourceName: job.SourceName,
		Backend:    string(job.Backend),
		Size:       job.Size,
		Status:     string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
		ReviewReason: job.ReviewReason,
		RuleID:       job.RuleID,
		TargetPath:   job.TargetPath,
	}
	if raw := job.HintsJSON; raw != "" {
		dto.Hints = json.RawMessage(raw)
	}
	if raw := job.ResultJSON; raw != "" {
		dto.Result = json.RawMessage(raw)
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*store.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeStats(summary.QueueStats),
		LastError:   summary.LastError,
		StageHealth: stageHealthSlice(summary.StageHealth),
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		status.LastJob = &job
	}
	return status
}

// MergeStats normalizes status counts into string keys.
func MergeStats(stats map[store.JobStatus]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

func stageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromTransferRecord converts a history record to its API representation.
func FromTransferRecord(record *store.TransferRecord) HistoryRecord {
	if record == nil {
		return HistoryRecord{}
	}
	dto := HistoryRecord{
		ID:           record.ID,
		JobID:        record.JobID,
		SourcePath:   record.SourcePath,
		TargetPath:   record.TargetPath,
		Backend:      string(record.Backend),
		Outcome:      string(record.Outcome),
		Bytes:        record.Bytes,
		DurationMS:   record.DurationMS,
		ErrorMessage: record.ErrorMessage,
	}
	if !record.CreatedAt.IsZero() {
		dto.CreatedAt = record.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromTransferRecords converts history records into API DTOs.
func FromTransferRecords(records []*store.TransferRecord) []HistoryRecord {
	if len(records) == 0 {
		return nil
	}
	out := make([]HistoryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, FromTransferRecord(record))
	}
	return out
}
