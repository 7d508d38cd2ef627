package api_test

import (
	"testing"
	"time"

	"organ/internal/api"
	"organ/internal/media"
	"organ/internal/stage"
	"organ/internal/store"
	"organ/internal/workflow"
)

func TestFromJob(t *testing.T) {
	created := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)
	job := &store.Job{
		ID:              12,
		SourcePath:      "/media/inbox/Heat.1995.mkv",
		SourceName:      "Heat.1995.mkv",
		Backend:         media.BackendLocal,
		Size:            4096,
		Status:          store.JobRecognized,
		ProgressStage:   "Recognized",
		ProgressPercent: 100,
		ProgressMessage: "Heat",
		ResultJSON:      `{"confidence":"high"}`,
		RuleID:          "movies-default",
		TargetPath:      "/media/library/Movies/Heat (1995)/Heat (1995).mkv",
		CreatedAt:       created,
		UpdatedAt:       created.Add(time.Minute),
	}

	dto := api.FromJob(job)
	if dto.ID != 12 || dto.Status != "recognized" || dto.Backend != "local" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.Progress.Stage != "Recognized" || dto.Progress.Percent != 100 {
		t.Fatalf("unexpected progress: %+v", dto.Progress)
	}
	if string(dto.Result) != `{"confidence":"high"}` {
		t.Fatalf("result not passed through: %s", dto.Result)
	}
	if dto.Hints != nil {
		t.Fatalf("expected empty hints to be omitted")
	}
	if dto.CreatedAt != "2026-03-04T10:30:00.000Z" {
		t.Fatalf("unexpected createdAt: %s", dto.CreatedAt)
	}
}

func TestFromJobNil(t *testing.T) {
	if dto := api.FromJob(nil); dto.ID != 0 {
		t.Fatalf("expected zero dto, got %+v", dto)
	}
	if out := api.FromJobs(nil); out != nil {
		t.Fatalf("expected nil slice, got %v", out)
	}
}

func TestFromStatusSummaryOrdersStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running: true,
		QueueStats: map[store.JobStatus]int{
			store.JobPending:   2,
			store.JobCompleted: 5,
		},
		StageHealth: map[string]stage.Health{
			"transferrer": stage.Healthy("transferrer"),
			"recognizer":  stage.Unhealthy("recognizer", "catalog unreachable"),
		},
	}

	status := api.FromStatusSummary(summary)
	if !status.Running {
		t.Fatalf("expected running")
	}
	if status.QueueStats["pending"] != 2 || status.QueueStats["completed"] != 5 {
		t.Fatalf("unexpected stats: %v", status.QueueStats)
	}
	if len(status.StageHealth) != 2 {
		t.Fatalf("expected two health entries, got %d", len(status.StageHealth))
	}
	if status.StageHealth[0].Name != "recognizer" || status.StageHealth[1].Name != "transferrer" {
		t.Fatalf("health not sorted: %+v", status.StageHealth)
	}
	if status.StageHealth[0].Ready || status.StageHealth[0].Detail == "" {
		t.Fatalf("unexpected recognizer health: %+v", status.StageHealth[0])
	}
}

func TestFromTransferRecord(t *testing.T) {
	record := &store.TransferRecord{
		ID:         3,
		JobID:      12,
		SourcePath: "/media/inbox/Heat.1995.mkv",
		TargetPath: "/media/library/Movies/Heat (1995)/Heat (1995).mkv",
		Backend:    media.BackendLocal,
		Outcome:    store.OutcomeCompleted,
		Bytes:      4096,
		DurationMS: 120,
		CreatedAt:  time.Date(2026, time.March, 4, 11, 0, 0, 0, time.UTC),
	}

	dto := api.FromTransferRecord(record)
	if dto.JobID != 12 || dto.Outcome != "completed" || dto.DurationMS != 120 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt != "2026-03-04T11:00:00.000Z" {
		t.Fatalf("unexpected createdAt: %s", dto.CreatedAt)
	}
}
