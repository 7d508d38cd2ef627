package store

import (
	"strings"
	"time"

	"organ/internal/media"
)

// JobStatus represents the lifecycle of an organize job.
type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobRecognizing  JobStatus = "recognizing"
	JobRecognized   JobStatus = "recognized"
	JobTransferring JobStatus = "transferring"
	JobCompleted    JobStatus = "completed"
	JobFailed       JobStatus = "failed"
	JobReview       JobStatus = "review"
)

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []JobStatus{
	JobPending,
	JobRecognizing,
	JobRecognized,
	JobTransferring,
	JobCompleted,
	JobFailed,
	JobReview,
}

var statusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[JobStatus]struct{}{
	JobRecognizing:  {},
	JobTransferring: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []JobStatus {
	cp := make([]JobStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known JobStatus.
func ParseStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status JobStatus) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Job represents one file moving through recognition and transfer.
type Job struct {
	ID              int64
	SourcePath      string
	SourceName      string
	Backend         media.Backend
	Size            int64
	FileID          string
	Fingerprint     string
	Status          JobStatus
	HintsJSON       string
	ResultJSON      string
	RuleID          string
	TargetPath      string
	ErrorMessage    string
	ReviewReason    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// SetProgress updates all three progress fields atomically.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error message and clears
// the heartbeat.
func (j *Job) SetFailed(message string) {
	j.Status = JobFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.LastHeartbeat = nil
	j.ProgressStage = "Failed"
}

// SetReview marks the job for manual review with the given reason.
func (j *Job) SetReview(reason string) {
	j.Status = JobReview
	j.ReviewReason = reason
	j.LastHeartbeat = nil
}

// RuleCondition is one predicate of a routing rule. Value holds a string,
// a number, or a list depending on the operator.
type RuleCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Rule is a persisted routing rule. Lower priority values are checked
// first. MediaType and StorageType accept the "all" wildcard; an empty
// condition list matches unconditionally.
type Rule struct {
	ID             string
	Name           string
	Priority       int
	MediaType      media.Type
	StorageType    media.Backend
	Conditions     []RuleCondition
	TargetPath     string
	NamingTemplate string
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppliesTo reports whether the rule's media-type and storage-type filters
// accept the given pair.
func (r *Rule) AppliesTo(mediaType media.Type, backend media.Backend) bool {
	if r.MediaType != media.TypeAll && r.MediaType != mediaType {
		return false
	}
	if r.StorageType != media.BackendAll && r.StorageType != backend {
		return false
	}
	return true
}

// MonitoredFolder is a watched source directory on some backend.
type MonitoredFolder struct {
	ID         int64
	Path       string
	Backend    media.Backend
	MediaType  media.Type
	Recursive  bool
	Enabled    bool
	LastScanAt *time.Time
	CreatedAt  time.Time
}

// TransferOutcome describes how a transfer ended.
type TransferOutcome string

const (
	OutcomeCompleted TransferOutcome = "completed"
	OutcomeFailed    TransferOutcome = "failed"
	OutcomeSkipped   TransferOutcome = "skipped"
)

// TransferRecord is one row of transfer history.
type TransferRecord struct {
	ID           int64
	JobID        int64
	SourcePath   string
	TargetPath   string
	Backend      media.Backend
	Outcome      TransferOutcome
	Bytes        int64
	DurationMS   int64
	ErrorMessage string
	CreatedAt    time.Time
}

// NamingTemplate is a persisted custom naming template. Built-in presets
// live in the naming package; this table holds user-defined ones.
type NamingTemplate struct {
	ID           string
	Name         string
	MovieFolder  string
	MovieFile    string
	TVFolder     string
	SeasonFolder string
	EpisodeFile  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CachedRecognition is a persisted recognition result keyed by file
// fingerprint.
type CachedRecognition struct {
	Key          string
	Payload      string
	Confidence   media.Confidence
	UserOverride bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Review     int
	Failed     int
	Completed  int
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
