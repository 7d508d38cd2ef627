// Package preflight provides readiness checks for external services
// and filesystem paths that the organizer depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup. Failed checks are logged so
//     an operator sees a dead TMDB key or full disk before the first
//     batch stalls on it.
//   - The CLI "organ status" command uses the FromConfig variants
//     (CheckTMDBFromConfig, CheckWebDAVFromConfig) to display service
//     health.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
