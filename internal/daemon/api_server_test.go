package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"organ/internal/api"
	"organ/internal/store"
)

type jobStoreStub struct {
	jobs    []*store.Job
	history []*store.TransferRecord
}

func (s *jobStoreStub) ListJobs(context.Context, ...store.JobStatus) ([]*store.Job, error) {
	return s.jobs, nil
}

func (s *jobStoreStub) Stats(context.Context) (map[store.JobStatus]int, error) {
	return map[store.JobStatus]int{store.JobPending: len(s.jobs)}, nil
}

func (s *jobStoreStub) GetJob(context.Context, int64) (*store.Job, error) {
	if len(s.jobs) == 0 {
		return nil, nil
	}
	return s.jobs[0], nil
}

func (s *jobStoreStub) ListTransferHistory(context.Context, int) ([]*store.TransferRecord, error) {
	return s.history, nil
}

func TestAPIServerHandleJobs(t *testing.T) {
	stub := &jobStoreStub{jobs: []*store.Job{{ID: 1, SourceName: "Heat.1995.mkv", Status: store.JobPending}}}
	srv := &apiServer{jobSvc: api.NewJobService(stub)}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.JobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(resp.Jobs))
	}
	if resp.Jobs[0].SourceName != "Heat.1995.mkv" {
		t.Fatalf("unexpected source name: %q", resp.Jobs[0].SourceName)
	}
}

func TestAPIServerHandleJob(t *testing.T) {
	stub := &jobStoreStub{jobs: []*store.Job{{ID: 7, SourceName: "Heat.1995.mkv", Status: store.JobCompleted}}}
	srv := &apiServer{jobSvc: api.NewJobService(stub)}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/7", nil)
	w := httptest.NewRecorder()
	srv.handleJob(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.JobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Job.ID != 7 || resp.Job.Status != "completed" {
		t.Fatalf("unexpected job: %+v", resp.Job)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/bogus", nil)
	w = httptest.NewRecorder()
	srv.handleJob(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", w.Code)
	}
}

func TestAPIServerHandleHistory(t *testing.T) {
	stub := &jobStoreStub{history: []*store.TransferRecord{{ID: 2, JobID: 7, Outcome: store.OutcomeCompleted}}}
	srv := &apiServer{jobSvc: api.NewJobService(stub)}

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil)
	w := httptest.NewRecorder()
	srv.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Outcome != "completed" {
		t.Fatalf("unexpected history: %+v", resp.Records)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := authMiddleware("secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with token, got %d", w.Code)
	}

	open := authMiddleware("", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w = httptest.NewRecorder()
	open(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 without auth configured, got %d", w.Code)
	}
}
