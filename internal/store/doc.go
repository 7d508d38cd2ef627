// Package store provides SQLite persistence for jobs, routing rules,
// monitored folders, the recognition cache, transfer history, and custom
// naming templates.
//
// The database lives under the configured data directory and is opened with
// WAL journaling and a busy timeout. The schema is embedded and applied on
// first open; a version gate rejects databases created by other schema
// versions.
//
// Jobs move through pending, recognizing, recognized, transferring,
// completed, failed, and review. Recognizing and transferring are processing
// states guarded by heartbeats; stale jobs are reclaimed back to pending.
package store
