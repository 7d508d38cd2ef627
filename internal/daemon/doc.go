// Package daemon coordinates the long-running organ process and system
// integration points.
//
// It wires configuration, the job store, the workflow manager, and the
// folder monitor scheduler into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon exposes queue
// maintenance helpers, manual file ingestion, transfer history, and an
// HTTP control API consumed by the organ CLI.
//
// Keep orchestration logic here: individual workflow stages should live
// in their respective packages while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
