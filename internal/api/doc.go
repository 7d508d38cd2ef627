// Package api defines wire-format types and converters for the daemon
// HTTP API. It translates internal job and transfer records into
// transport-friendly DTOs so that clients never couple to store types.
//
// # Key Types
//
// Job: transport representation of a queued file with progress, routing,
// and review state.
//
// WorkflowStatus: daemon running state, queue stats, stage health, and
// the most recently processed job.
//
// DaemonStatus: aggregated runtime information for the status endpoint.
//
// HistoryRecord: a completed transfer with outcome and timing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (store.JobStatus,
// media.Backend) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Recognition hints and results are passed
// through as json.RawMessage to avoid double-encoding.
package api
