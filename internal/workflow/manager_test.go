package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"organ/internal/config"
	"organ/internal/media"
	"organ/internal/services"
	"organ/internal/stage"
	"organ/internal/store"
)

type fakeHandler struct {
	name     string
	execErr  error
	executed atomic.Int64
	mutate   func(*store.Job)
}

func (f *fakeHandler) Prepare(ctx context.Context, job *store.Job) error { return nil }

func (f *fakeHandler) Execute(ctx context.Context, job *store.Job) error {
	f.executed.Add(1)
	if f.mutate != nil {
		f.mutate(job)
	}
	return f.execErr
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func workflowConfig() *config.Config {
	cfg := config.Default()
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 30
	return &cfg
}

func enqueueJob(t *testing.T, st *store.Store, name string) *store.Job {
	t.Helper()
	job, err := st.NewJob(context.Background(), media.FileInfo{
		Name:    name,
		Path:    "/inbox/" + name,
		Size:    1024,
		Backend: media.BackendLocal,
	}, "fp-"+name)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func waitForStatus(t *testing.T, st *store.Store, id int64, want store.JobStatus) *store.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	job, _ := st.GetJob(context.Background(), id)
	t.Fatalf("job %d never reached %s (last status %s)", id, want, job.Status)
	return nil
}

func TestManagerRunsJobThroughBothStages(t *testing.T) {
	st := testStore(t)
	job := enqueueJob(t, st, "movie.mkv")

	recognize := &fakeHandler{name: "recognizer", mutate: func(j *store.Job) {
		j.ResultJSON = `{"confidence":"high","info":{"title":"Movie"}}`
	}}
	transferred := &fakeHandler{name: "transferrer", mutate: func(j *store.Job) {
		j.TargetPath = "/media/movies/Movie"
	}}

	m := NewManager(workflowConfig(), st, nil, nil, nil)
	m.ConfigureStages(StageSet{Recognizer: recognize, Transferrer: transferred})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	final := waitForStatus(t, st, job.ID, store.JobCompleted)
	if final.TargetPath != "/media/movies/Movie" {
		t.Fatalf("target path = %q", final.TargetPath)
	}
	if final.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", final.ProgressPercent)
	}
	if recognize.executed.Load() != 1 || transferred.executed.Load() != 1 {
		t.Fatalf("stage executions = %d/%d, want 1/1",
			recognize.executed.Load(), transferred.executed.Load())
	}
}

func TestManagerValidationFailureParksForReview(t *testing.T) {
	st := testStore(t)
	job := enqueueJob(t, st, "odd.mkv")

	recognize := &fakeHandler{
		name:    "recognizer",
		execErr: services.Wrap(services.ErrValidation, "recognizer", "identify", "no catalog match", nil),
	}

	m := NewManager(workflowConfig(), st, nil, nil, nil)
	m.ConfigureStages(StageSet{Recognizer: recognize})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	final := waitForStatus(t, st, job.ID, store.JobReview)
	if final.ReviewReason == "" {
		t.Fatal("expected review reason")
	}
	if final.ErrorMessage != "" {
		t.Fatalf("review job must not carry an error message, got %q", final.ErrorMessage)
	}
}

func TestManagerTransientFailureMarksFailed(t *testing.T) {
	st := testStore(t)
	job := enqueueJob(t, st, "flaky.mkv")

	recognize := &fakeHandler{
		name:    "recognizer",
		execErr: services.Wrap(services.ErrExternalService, "recognizer", "search", "catalog unavailable", errors.New("503")),
	}

	m := NewManager(workflowConfig(), st, nil, nil, nil)
	m.ConfigureStages(StageSet{Recognizer: recognize})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	final := waitForStatus(t, st, job.ID, store.JobFailed)
	if final.ErrorMessage == "" {
		t.Fatal("expected error message on failed job")
	}
}

func TestManagerStageCanParkJobDirectly(t *testing.T) {
	st := testStore(t)
	job := enqueueJob(t, st, "lowconf.mkv")

	recognize := &fakeHandler{name: "recognizer", mutate: func(j *store.Job) {
		j.Status = store.JobReview
		j.ReviewReason = "confidence low below threshold"
	}}

	m := NewManager(workflowConfig(), st, nil, nil, nil)
	m.ConfigureStages(StageSet{Recognizer: recognize})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	final := waitForStatus(t, st, job.ID, store.JobReview)
	if final.ReviewReason != "confidence low below threshold" {
		t.Fatalf("review reason = %q", final.ReviewReason)
	}
}

func TestManagerRequiresConfiguredStages(t *testing.T) {
	m := NewManager(workflowConfig(), testStore(t), nil, nil, nil)
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error when no stages configured")
		m.Stop()
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	st := testStore(t)
	m := NewManager(workflowConfig(), st, nil, nil, nil)
	m.ConfigureStages(StageSet{
		Recognizer:  &fakeHandler{name: "recognizer"},
		Transferrer: &fakeHandler{name: "transferrer"},
	})

	summary := m.Status(context.Background())
	if summary.Running {
		t.Fatal("manager not started, Running must be false")
	}
	if len(summary.StageHealth) != 2 {
		t.Fatalf("stage health entries = %d, want 2", len(summary.StageHealth))
	}
	if !summary.StageHealth["recognizer"].Ready {
		t.Fatal("recognizer stage should report ready")
	}
}
