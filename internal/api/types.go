package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queued file in a transport-friendly format.
type Job struct {
	ID           int64           `json:"id"`
	SourcePath   string          `json:"sourcePath"`
	SourceName   string          `json:"sourceName"`
	Backend      string          `json:"backend"`
	Size         int64           `json:"size"`
	Status       string          `json:"status"`
	Progress     JobProgress     `json:"progress"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	ReviewReason string          `json:"reviewReason,omitempty"`
	RuleID       string          `json:"ruleId,omitempty"`
	TargetPath   string          `json:"targetPath,omitempty"`
	Hints        json.RawMessage `json:"hints,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// HistoryRecord describes a completed transfer attempt.
type HistoryRecord struct {
	ID           int64  `json:"id"`
	JobID        int64  `json:"jobId"`
	SourcePath   string `json:"sourcePath"`
	TargetPath   string `json:"targetPath"`
	Backend      string `json:"backend"`
	Outcome      string `json:"outcome"`
	Bytes        int64  `json:"bytes"`
	DurationMS   int64  `json:"durationMs"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// StatsResponse provides a normalized job stats payload.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// HistoryResponse wraps transfer history records.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}
